package blob

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/codec"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/report"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
)

// StoredReport describes an uploaded report file.
type StoredReport struct {
	KeyName       string `json:"key_name" yaml:"key_name"`
	CanonicalType int    `json:"canonical_type" yaml:"canonical_type"`
	ObjectKey     string `json:"object_key" yaml:"object_key"`
	Size          int64  `json:"size_bytes" yaml:"size_bytes"`
}

// StoreReports uploads every report of src under the partition prefix, one
// task per report. A failure does not cancel sibling uploads: every task runs
// to completion and the first error is returned. Every report file is closed
// and removed whatever the outcome.
func (p *Publisher) StoreReports(ctx context.Context, src report.Source, bucket, partitionID string) ([]StoredReport, error) {
	reports, err := src.Reports()
	if err != nil {
		return nil, fmt.Errorf("collect reports: %w", err)
	}
	defer func() {
		if err := report.CloseAll(reports); err != nil {
			slog.Warn("failed to remove report files", logging.Partition(partitionID), logging.Error(err))
		}
	}()

	stored := make([]StoredReport, len(reports))
	var g errgroup.Group
	for i, r := range reports {
		g.Go(func() error {
			size, err := r.Size()
			if err != nil {
				return err
			}
			key := ReportKey(partitionID, r.CanonicalType, r.KeyName)
			if err := p.Upload(ctx, bucket, key, r.File); err != nil {
				return fmt.Errorf("upload %s: %w", r.KeyName, err)
			}
			slog.Debug("report uploaded", logging.Partition(partitionID), logging.Key(key), slog.Int64("size", size))
			stored[i] = StoredReport{KeyName: r.KeyName, CanonicalType: r.CanonicalType, ObjectKey: key, Size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stored, nil
}

// StoreReports uploads the reports of src with default publisher options.
func StoreReports(ctx context.Context, src report.Source, bucket, partitionID string, store ObjectStore) ([]StoredReport, error) {
	return NewPublisher(store, Options{}).StoreReports(ctx, src, bucket, partitionID)
}

// GetReportAvro downloads and decodes an Avro report.
func GetReportAvro[T any](ctx context.Context, store ObjectStore, bucket, key string) ([]T, error) {
	body, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return codec.DecodeAvro[T](body)
}

// GetReportJSON downloads and decodes a JSON lines report.
func GetReportJSON[T any](ctx context.Context, store ObjectStore, bucket, key string) ([]T, error) {
	body, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return codec.DecodeJSON[T](body)
}
