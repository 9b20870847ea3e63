// Package indexer mirrors parsed packets into OpenSearch for ad-hoc search.
package indexer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/common/config"
)

// NewClient connects to OpenSearch and checks the cluster answers.
func NewClient(cfg config.OpenSearchConfig) (*opensearch.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}
	return client, nil
}

// Document is the indexed form of a packet.
type Document struct {
	Timestamp   time.Time   `json:"@timestamp"`
	PartitionID string      `json:"partition_id"`
	BatchID     string      `json:"batch_id"`
	Game        parser.Game `json:"game"`
	Event       string      `json:"event"`
	Packet      any         `json:"packet"`
}

// Result counts the outcome of one Index call.
type Result struct {
	Indexed int      `json:"indexed"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type Indexer struct {
	client        *opensearch.Client
	prefix        string
	flushInterval time.Duration
	workers       int
}

func New(client *opensearch.Client, cfg config.OpenSearchConfig) *Indexer {
	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "telhawk-combatlog"
	}
	return &Indexer{
		client:        client,
		prefix:        prefix,
		flushInterval: cfg.FlushInterval,
		workers:       max(cfg.Workers, 1),
	}
}

// IndexName returns the index holding packets of game.
func (ix *Indexer) IndexName(game parser.Game) string {
	return fmt.Sprintf("%s-%s", ix.prefix, game)
}

// Index sends the packets of one batch. Document ids derive from the batch
// so a redelivered batch overwrites instead of duplicating.
func (ix *Indexer) Index(ctx context.Context, batchID string, packets []parser.Packet) (*Result, error) {
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:        ix.client,
		NumWorkers:    ix.workers,
		FlushInterval: ix.flushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var mu sync.Mutex
	res := &Result{}
	fail := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		res.Failed++
		res.Errors = append(res.Errors, msg)
	}

	for i, p := range packets {
		if p.Flush() {
			continue
		}
		data, err := json.Marshal(document(batchID, p))
		if err != nil {
			fail(fmt.Sprintf("failed to marshal packet %d: %v", i, err))
			continue
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Index:      ix.IndexName(p.Game),
			Action:     "index",
			DocumentID: fmt.Sprintf("%s-%s-%d", p.PartitionID, batchID, i),
			Body:       bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item opensearchutil.BulkIndexerItem, r opensearchutil.BulkIndexerResponseItem) {
				mu.Lock()
				defer mu.Unlock()
				res.Indexed++
			},
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, r opensearchutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					fail(err.Error())
					return
				}
				fail(fmt.Sprintf("%s: %s", r.Error.Type, r.Error.Reason))
			},
		})
		if err != nil {
			fail(fmt.Sprintf("failed to add to bulk indexer: %v", err))
		}
	}

	if err := bi.Close(ctx); err != nil {
		return res, fmt.Errorf("bulk indexer close: %w", err)
	}

	if res.Failed > 0 {
		slog.WarnContext(ctx, "Some packets were not indexed",
			slog.String("batch_id", batchID),
			slog.Int("indexed", res.Indexed),
			slog.Int("failed", res.Failed))
	}
	return res, nil
}

func document(batchID string, p parser.Packet) Document {
	doc := Document{
		Timestamp:   p.Time,
		PartitionID: p.PartitionID,
		BatchID:     batchID,
		Game:        p.Game,
		Event:       p.EventName(),
	}
	switch {
	case p.WoW != nil:
		doc.Packet = p.WoW
	case p.FF14 != nil:
		doc.Packet = p.FF14
	case p.Hearthstone != nil:
		doc.Packet = p.Hearthstone
	}
	return doc
}
