// Package buffer keeps the parsed packets of open partitions in Redis until
// the partition is finalized.
package buffer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
)

// DefaultTTL is how long an idle partition survives.
const DefaultTTL = 24 * time.Hour

// Buffer is an ordered per-partition packet list with batch dedupe.
type Buffer struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New returns a buffer whose keys expire ttl after the last append.
func New(rdb redis.UniversalClient, ttl time.Duration) *Buffer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Buffer{rdb: rdb, ttl: ttl}
}

// Keys share the {partition} hash tag so a partition lives on one cluster slot.
func packetsKey(partitionID string) string {
	return fmt.Sprintf("combatlog:partition:{%s}:packets", partitionID)
}

func batchesKey(partitionID string) string {
	return fmt.Sprintf("combatlog:partition:{%s}:batches", partitionID)
}

func batchKey(partitionID, fingerprint string) string {
	return fmt.Sprintf("combatlog:partition:{%s}:batch:%s", partitionID, fingerprint)
}

// Fingerprint identifies a batch by its id and content.
func Fingerprint(batchID string, packets [][]byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(batchID))
	for _, p := range packets {
		h.Write([]byte{0})
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Append stores packets at the end of the partition list. A batch already
// appended, recognized by its fingerprint, is skipped and reported with
// false.
func (b *Buffer) Append(ctx context.Context, partitionID, batchID string, packets []parser.Packet) (bool, error) {
	encoded := make([][]byte, len(packets))
	values := make([]any, len(packets))
	for i, p := range packets {
		data, err := json.Marshal(p)
		if err != nil {
			return false, fmt.Errorf("encode packet %d: %w", i, err)
		}
		encoded[i] = data
		values[i] = data
	}

	fp := Fingerprint(batchID, encoded)
	fresh, err := b.rdb.SetNX(ctx, batchKey(partitionID, fp), batchID, b.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark batch: %w", err)
	}
	if !fresh {
		return false, nil
	}

	pipe := b.rdb.TxPipeline()
	if len(values) > 0 {
		pipe.RPush(ctx, packetsKey(partitionID), values...)
		pipe.Expire(ctx, packetsKey(partitionID), b.ttl)
	}
	pipe.Incr(ctx, batchesKey(partitionID))
	pipe.Expire(ctx, batchesKey(partitionID), b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// Let a redelivery retry the batch.
		b.rdb.Del(context.WithoutCancel(ctx), batchKey(partitionID, fp))
		return false, fmt.Errorf("append packets: %w", err)
	}
	return true, nil
}

// Drain returns every buffered packet of the partition in append order. The
// packets stay buffered until Clear.
func (b *Buffer) Drain(ctx context.Context, partitionID string) ([]parser.Packet, error) {
	raw, err := b.rdb.LRange(ctx, packetsKey(partitionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read packets: %w", err)
	}
	packets := make([]parser.Packet, len(raw))
	for i, s := range raw {
		if err := json.Unmarshal([]byte(s), &packets[i]); err != nil {
			return nil, fmt.Errorf("decode packet %d: %w", i, err)
		}
	}
	return packets, nil
}

// Clear drops the partition packets. Batch markers are left to expire so
// late redeliveries are still recognized.
func (b *Buffer) Clear(ctx context.Context, partitionID string) error {
	if err := b.rdb.Del(ctx, packetsKey(partitionID), batchesKey(partitionID)).Err(); err != nil {
		return fmt.Errorf("clear partition: %w", err)
	}
	return nil
}

// Stats describes a buffered partition.
type Stats struct {
	Packets int64         `json:"packets"`
	Batches int64         `json:"batches"`
	TTL     time.Duration `json:"ttl"`
}

// Stats returns counts for the partition; an unknown partition has zero counts.
func (b *Buffer) Stats(ctx context.Context, partitionID string) (Stats, error) {
	pipe := b.rdb.Pipeline()
	packets := pipe.LLen(ctx, packetsKey(partitionID))
	batches := pipe.Get(ctx, batchesKey(partitionID))
	ttl := pipe.TTL(ctx, packetsKey(partitionID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("partition stats: %w", err)
	}

	s := Stats{Packets: packets.Val(), TTL: max(ttl.Val(), 0)}
	if n, err := batches.Int64(); err == nil {
		s.Batches = n
	}
	return s, nil
}
