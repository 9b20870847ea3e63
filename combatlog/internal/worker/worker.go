// Package worker consumes raw log batches from the bus, buffers the parsed
// packets per partition and publishes the partition reports once it is
// flushed.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/buffer"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/catalog"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/indexer"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/metrics"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/pipeline"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
	"github.com/telhawk-systems/telhawk-combatlog/common/messaging"
)

// ErrInvalidBatch marks a message that can never be processed. Such messages
// are acked and dropped.
var ErrInvalidBatch = errors.New("invalid batch")

// Indexer mirrors packets into a search index.
type Indexer interface {
	Index(ctx context.Context, batchID string, packets []parser.Packet) (*indexer.Result, error)
}

// ReportsPublished is the body of a combatlog.reports.published message.
type ReportsPublished struct {
	PartitionID string              `json:"partition_id"`
	Game        parser.Game         `json:"game"`
	Bucket      string              `json:"bucket"`
	Reports     []blob.StoredReport `json:"reports"`
	FinalizedAt time.Time           `json:"finalized_at"`
}

// Config holds the worker settings.
type Config struct {
	Bucket  string
	WorkDir string
}

type Worker struct {
	cfg       Config
	buffer    *buffer.Buffer
	catalog   catalog.Repository
	publisher *blob.Publisher
	events    messaging.Publisher
	indexer   Indexer
	now       func() time.Time
}

type Option func(*Worker)

// WithIndexer mirrors every new batch into idx.
func WithIndexer(idx Indexer) Option {
	return func(w *Worker) { w.indexer = idx }
}

// WithEvents announces finalized partitions on pub.
func WithEvents(pub messaging.Publisher) Option {
	return func(w *Worker) { w.events = pub }
}

func New(cfg Config, buf *buffer.Buffer, repo catalog.Repository, pub *blob.Publisher, opts ...Option) *Worker {
	w := &Worker{
		cfg:       cfg,
		buffer:    buf,
		catalog:   repo,
		publisher: pub,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start consumes the batches stream until stop is called.
func (w *Worker) Start(ctx context.Context, consumer messaging.Consumer, opts ...messaging.ConsumeOption) (func(), error) {
	stop, err := consumer.Consume(ctx, messaging.StreamBatches, messaging.ConsumerWorkers, w.Handle, opts...)
	if err != nil {
		return nil, fmt.Errorf("consume batches: %w", err)
	}
	slog.Info("Worker started",
		slog.String("stream", messaging.StreamBatches),
		slog.String("consumer", messaging.ConsumerWorkers))
	return stop, nil
}

// Handle is the messaging.MessageHandler for batch messages. A returned
// error asks for redelivery.
func (w *Worker) Handle(ctx context.Context, msg *messaging.Message) error {
	var m BatchMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		metrics.BatchesTotal.WithLabelValues("invalid").Inc()
		slog.ErrorContext(ctx, "Dropping undecodable batch message",
			slog.String("subject", msg.Subject), logging.Error(err))
		return nil
	}

	ref := msg.Timestamp
	if ref.IsZero() {
		ref = w.now()
	}
	err := w.Process(ctx, m, ref)
	switch {
	case errors.Is(err, ErrInvalidBatch):
		metrics.BatchesTotal.WithLabelValues("invalid").Inc()
		slog.ErrorContext(ctx, "Dropping invalid batch",
			logging.Partition(m.PartitionID), slog.String("batch_id", m.BatchID), logging.Error(err))
		return nil
	case err != nil:
		metrics.BatchesTotal.WithLabelValues("retry").Inc()
		return err
	}
	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Process runs one batch. ref anchors timestamps of formats that omit the
// date.
func (w *Worker) Process(ctx context.Context, m BatchMessage, ref time.Time) error {
	ctx = logging.WithBatch(logging.WithPartition(ctx, m.PartitionID), m.BatchID)
	log := logging.Default().WithContext(ctx)

	game, err := parser.GameOf(m.PartitionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	lines, err := DecodeLines(m.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}

	results, err := parser.ParseAt(m.PartitionID, ref, lines)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	packets := parser.Packets(results)
	w.recordLines(ctx, game, results)

	existing, err := w.catalog.GetCombatLog(ctx, m.PartitionID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load combat log: %w", err)
	case existing.Finalized():
		log.Warn("Ignoring batch for finalized partition")
		return nil
	}

	state, _ := json.Marshal(map[string]any{"last_batch": m.BatchID, "packets": len(packets)})
	cl := &catalog.CombatLog{
		PartitionID: m.PartitionID,
		Game:        string(game),
		StartTime:   firstTime(packets, ref),
		OwnerID:     m.OwnerID,
		State:       state,
	}
	if err := w.catalog.UpsertCombatLog(ctx, cl); err != nil {
		return fmt.Errorf("upsert combat log: %w", err)
	}

	appended, err := w.buffer.Append(ctx, m.PartitionID, m.BatchID, packets)
	if err != nil {
		return fmt.Errorf("buffer batch: %w", err)
	}
	if !appended {
		log.Info("Batch already buffered")
	} else if w.indexer != nil {
		if _, err := w.indexer.Index(ctx, m.BatchID, packets); err != nil {
			log.Warn("Failed to index batch", logging.Error(err))
		}
	}

	if !m.Final && !hasFlush(packets) {
		return nil
	}
	return w.Finalize(ctx, m.PartitionID)
}

// Finalize generates and publishes the reports of everything buffered for
// the partition, records them and clears the buffer.
func (w *Worker) Finalize(ctx context.Context, partitionID string) error {
	log := logging.Default().WithContext(logging.WithPartition(ctx, partitionID))
	started := time.Now()

	packets, err := w.buffer.Drain(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("drain buffer: %w", err)
	}

	out, err := pipeline.Generate(ctx, partitionID, packets, w.cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("generate reports: %w", err)
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			log.Warn("Failed to remove work dir", logging.Error(err))
		}
	}()

	stored, err := w.publisher.StoreReports(ctx, out, w.cfg.Bucket, partitionID)
	if err != nil {
		return fmt.Errorf("store reports: %w", err)
	}
	metrics.ReportsTotal.WithLabelValues(string(out.Game)).Add(float64(len(stored)))

	rows := make([]catalog.Report, len(stored))
	for i, s := range stored {
		rows[i] = catalog.Report{
			CanonicalType: s.CanonicalType,
			KeyName:       s.KeyName,
			ObjectKey:     s.ObjectKey,
			SizeBytes:     s.Size,
		}
	}
	if err := w.catalog.RecordReports(ctx, partitionID, rows); err != nil {
		return fmt.Errorf("record reports: %w", err)
	}

	finalizedAt := w.now()
	if err := w.catalog.MarkFinalized(ctx, partitionID, finalizedAt); err != nil && !errors.Is(err, catalog.ErrFinalized) {
		return fmt.Errorf("mark finalized: %w", err)
	}

	if w.events != nil {
		body, err := json.Marshal(ReportsPublished{
			PartitionID: partitionID,
			Game:        out.Game,
			Bucket:      w.cfg.Bucket,
			Reports:     stored,
			FinalizedAt: finalizedAt,
		})
		if err != nil {
			return fmt.Errorf("encode reports published: %w", err)
		}
		if err := w.events.Publish(ctx, messaging.SubjectReportsPublished, body); err != nil {
			log.Warn("Failed to announce reports", logging.Error(err))
		}
	}

	if err := w.buffer.Clear(ctx, partitionID); err != nil {
		log.Warn("Failed to clear buffer", logging.Error(err))
	}

	log.Info("Partition finalized",
		logging.Game(string(out.Game)),
		slog.Int("events", out.Events),
		slog.Int("reports", len(stored)),
		logging.Duration(time.Since(started)))
	return nil
}

func (w *Worker) recordLines(ctx context.Context, game parser.Game, results []parser.Result) {
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err == nil:
		case errors.Is(r.Err, parser.ErrUnrecognizedEvent):
			status = "unrecognized"
		case errors.Is(r.Err, parser.ErrParserPanic):
			status = "panic"
		default:
			status = "malformed"
		}
		metrics.LinesTotal.WithLabelValues(string(game), status).Inc()

		if r.Err != nil && status != "unrecognized" {
			slog.WarnContext(ctx, "Failed to parse line", logging.Line(r.Raw), logging.Error(r.Err))
		}
	}
}

func hasFlush(packets []parser.Packet) bool {
	for _, p := range packets {
		if p.Flush() {
			return true
		}
	}
	return false
}

func firstTime(packets []parser.Packet, fallback time.Time) time.Time {
	for _, p := range packets {
		if !p.Flush() && !p.Time.IsZero() {
			return p.Time
		}
	}
	return fallback
}
