package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the catalog in process. It backs the CLI when no
// database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	logs    map[string]*CombatLog
	reports map[string][]*Report
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		logs:    make(map[string]*CombatLog),
		reports: make(map[string][]*Report),
	}
}

func (m *MemoryRepository) Close() {}

func (m *MemoryRepository) UpsertCombatLog(_ context.Context, cl *CombatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.logs[cl.PartitionID]; ok {
		existing.State = slices.Clone(cl.State)
		cl.StartTime = existing.StartTime
		cl.OwnerID = existing.OwnerID
		cl.CreatedAt = existing.CreatedAt
		return nil
	}

	cl.CreatedAt = time.Now().UTC()
	stored := *cl
	stored.State = slices.Clone(cl.State)
	m.logs[cl.PartitionID] = &stored
	return nil
}

func (m *MemoryRepository) GetCombatLog(_ context.Context, partitionID string) (*CombatLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cl, ok := m.logs[partitionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *cl
	return &out, nil
}

func (m *MemoryRepository) ListCombatLogs(_ context.Context, game string, limit int) ([]*CombatLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var logs []*CombatLog
	for _, cl := range m.logs {
		if game != "" && cl.Game != game {
			continue
		}
		out := *cl
		logs = append(logs, &out)
	}
	slices.SortFunc(logs, func(a, b *CombatLog) int {
		return b.StartTime.Compare(a.StartTime)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (m *MemoryRepository) MarkFinalized(_ context.Context, partitionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl, ok := m.logs[partitionID]
	if !ok {
		return ErrNotFound
	}
	if cl.FinalizedAt != nil {
		return ErrFinalized
	}
	cl.FinalizedAt = &at
	return nil
}

func (m *MemoryRepository) RecordReports(_ context.Context, partitionID string, reports []Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.logs[partitionID]; !ok {
		return ErrNotFound
	}

	current := m.reports[partitionID]
	now := time.Now().UTC()
	for i := range reports {
		if reports[i].ID == "" {
			id, _ := uuid.NewV7()
			reports[i].ID = id.String()
		}
		reports[i].PartitionID = partitionID
		reports[i].CreatedAt = now

		rep := reports[i]
		current = slices.DeleteFunc(current, func(r *Report) bool { return r.KeyName == rep.KeyName })
		current = append(current, &rep)
	}
	m.reports[partitionID] = current
	return nil
}

func (m *MemoryRepository) ListReports(_ context.Context, partitionID string) ([]*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make([]*Report, 0, len(m.reports[partitionID]))
	for _, r := range m.reports[partitionID] {
		out := *r
		reports = append(reports, &out)
	}
	slices.SortFunc(reports, func(a, b *Report) int {
		if a.CanonicalType != b.CanonicalType {
			return a.CanonicalType - b.CanonicalType
		}
		return strings.Compare(a.KeyName, b.KeyName)
	})
	return reports, nil
}
