package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 5 * time.Second

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) UpsertCombatLog(ctx context.Context, cl *CombatLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	state := cl.State
	if len(state) == 0 {
		state = []byte(`{}`)
	}

	query := `
		INSERT INTO combat_logs (partition_id, game, start_time, owner_id, cl_state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (partition_id) DO UPDATE SET cl_state = EXCLUDED.cl_state
		RETURNING start_time, owner_id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		cl.PartitionID,
		cl.Game,
		cl.StartTime,
		cl.OwnerID,
		state,
	).Scan(&cl.StartTime, &cl.OwnerID, &cl.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert combat log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetCombatLog(ctx context.Context, partitionID string) (*CombatLog, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT partition_id, game, start_time, owner_id, cl_state, created_at, finalized_at
		FROM combat_logs
		WHERE partition_id = $1
	`

	cl, err := scanCombatLog(r.pool.QueryRow(ctx, query, partitionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get combat log: %w", err)
	}
	return cl, nil
}

func (r *PostgresRepository) ListCombatLogs(ctx context.Context, game string, limit int) ([]*CombatLog, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT partition_id, game, start_time, owner_id, cl_state, created_at, finalized_at
		FROM combat_logs
		WHERE $1::text = '' OR game = $1::text
		ORDER BY start_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, game, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list combat logs: %w", err)
	}
	defer rows.Close()

	var logs []*CombatLog
	for rows.Next() {
		cl, err := scanCombatLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan combat log: %w", err)
		}
		logs = append(logs, cl)
	}
	return logs, rows.Err()
}

func (r *PostgresRepository) MarkFinalized(ctx context.Context, partitionID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE combat_logs SET finalized_at = $2
		WHERE partition_id = $1 AND finalized_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, partitionID, at)
	if err != nil {
		return fmt.Errorf("failed to finalize combat log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCombatLog(ctx, partitionID); err != nil {
			return err
		}
		return ErrFinalized
	}
	return nil
}

func (r *PostgresRepository) RecordReports(ctx context.Context, partitionID string, reports []Report) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO combat_log_reports
		(id, partition_id, canonical_type, key_name, object_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (partition_id, key_name) DO UPDATE SET
			canonical_type = EXCLUDED.canonical_type,
			object_key = EXCLUDED.object_key,
			size_bytes = EXCLUDED.size_bytes,
			created_at = NOW()
	`

	batch := &pgx.Batch{}
	for i := range reports {
		if reports[i].ID == "" {
			id, _ := uuid.NewV7()
			reports[i].ID = id.String()
		}
		reports[i].PartitionID = partitionID
		batch.Queue(query,
			reports[i].ID,
			partitionID,
			reports[i].CanonicalType,
			reports[i].KeyName,
			reports[i].ObjectKey,
			reports[i].SizeBytes,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to record reports: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reports: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListReports(ctx context.Context, partitionID string) ([]*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id::text, partition_id, canonical_type, key_name, object_key, size_bytes, created_at
		FROM combat_log_reports
		WHERE partition_id = $1
		ORDER BY canonical_type, key_name
	`

	rows, err := r.pool.Query(ctx, query, partitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(&rep.ID, &rep.PartitionID, &rep.CanonicalType, &rep.KeyName, &rep.ObjectKey, &rep.SizeBytes, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &rep)
	}
	return reports, rows.Err()
}

func scanCombatLog(row pgx.Row) (*CombatLog, error) {
	var cl CombatLog
	var state []byte
	err := row.Scan(
		&cl.PartitionID,
		&cl.Game,
		&cl.StartTime,
		&cl.OwnerID,
		&state,
		&cl.CreatedAt,
		&cl.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	cl.State = state
	return &cl, nil
}
