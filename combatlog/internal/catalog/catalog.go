// Package catalog records combat-log partitions and the reports published
// for them.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("combat log not found")
	ErrFinalized = errors.New("combat log already finalized")
)

// CombatLog is one partition.
type CombatLog struct {
	PartitionID string          `json:"partition_id" yaml:"partition_id"`
	Game        string          `json:"game" yaml:"game"`
	StartTime   time.Time       `json:"start_time" yaml:"start_time"`
	OwnerID     string          `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	State       json.RawMessage `json:"state,omitempty" yaml:"-"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty" yaml:"finalized_at,omitempty"`
}

// Finalized reports whether reports were published for the partition.
func (c *CombatLog) Finalized() bool {
	return c.FinalizedAt != nil
}

// Report is one published report object.
type Report struct {
	ID            string    `json:"id" yaml:"id"`
	PartitionID   string    `json:"partition_id" yaml:"partition_id"`
	CanonicalType int       `json:"canonical_type" yaml:"canonical_type"`
	KeyName       string    `json:"key_name" yaml:"key_name"`
	ObjectKey     string    `json:"object_key" yaml:"object_key"`
	SizeBytes     int64     `json:"size_bytes" yaml:"size_bytes"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// Repository persists partitions and their reports.
type Repository interface {
	// UpsertCombatLog creates the partition or refreshes its state. The
	// original start time and owner are kept on conflict.
	UpsertCombatLog(ctx context.Context, cl *CombatLog) error
	GetCombatLog(ctx context.Context, partitionID string) (*CombatLog, error)
	ListCombatLogs(ctx context.Context, game string, limit int) ([]*CombatLog, error)
	MarkFinalized(ctx context.Context, partitionID string, at time.Time) error

	// RecordReports replaces the rows of reports sharing a key name.
	RecordReports(ctx context.Context, partitionID string, reports []Report) error
	ListReports(ctx context.Context, partitionID string) ([]*Report, error)

	Close()
}
