package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storage-sync/internal/db"
	"storage-sync/internal/storagesync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SyncStatus represents the status of the reconciliation job
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// PassStatus is the outcome of one reconciliation pass
type PassStatus string

const (
	PassStatusSuccess PassStatus = "success"
	PassStatusError   PassStatus = "error"
)

// SyncState is the single row tracking the reconciliation job
type SyncState struct {
	Status               SyncStatus `json:"status"`
	ManifestVersion      int64      `json:"manifest_version"`
	LastPassAt           *time.Time `json:"last_pass_at,omitempty"`
	LastSuccessfulPassAt *time.Time `json:"last_successful_pass_at,omitempty"`
	NextPassAt           *time.Time `json:"next_pass_at,omitempty"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	ErrorCount           int32      `json:"error_count"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SyncPass is the audit log entry of one reconciliation pass
type SyncPass struct {
	ID              uuid.UUID         `json:"id"`
	Trigger         string            `json:"trigger"`
	Status          PassStatus        `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     time.Time         `json:"completed_at"`
	ManifestVersion int64             `json:"manifest_version"`
	LocalWrites     int32             `json:"local_writes"`
	RemoteInserts   int32             `json:"remote_inserts"`
	RemoteDeletes   int32             `json:"remote_deletes"`
	Stats           storagesync.Stats `json:"stats"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
}

// SyncRepository handles sync state and pass log persistence
type SyncRepository struct {
	q db.DBTX
}

// NewSyncRepository creates a new sync repository
func NewSyncRepository(q db.DBTX) *SyncRepository {
	return &SyncRepository{q: q}
}

// GetState returns the reconciliation job state
func (r *SyncRepository) GetState(ctx context.Context) (*SyncState, error) {
	var (
		state                    SyncState
		status                   string
		lastPass, lastOK, nextAt pgtype.Timestamptz
		errMsg                   pgtype.Text
		updatedAt                pgtype.Timestamptz
	)
	err := r.q.QueryRow(ctx, `
		SELECT status, manifest_version, last_pass_at, last_successful_pass_at,
		       next_pass_at, error_message, error_count, updated_at
		FROM sync_state WHERE id = 1`,
	).Scan(&status, &state.ManifestVersion, &lastPass, &lastOK, &nextAt, &errMsg, &state.ErrorCount, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", db.Translate(err))
	}

	state.Status = SyncStatus(status)
	state.LastPassAt = pgTimestamptzToTime(lastPass)
	state.LastSuccessfulPassAt = pgTimestamptzToTime(lastOK)
	state.NextPassAt = pgTimestamptzToTime(nextAt)
	state.ErrorMessage = pgTextToString(errMsg)
	if updatedAt.Valid {
		state.UpdatedAt = updatedAt.Time
	}
	return &state, nil
}

// MarkSyncing flags the job as running
func (r *SyncRepository) MarkSyncing(ctx context.Context) error {
	_, err := r.q.Exec(ctx, `UPDATE sync_state SET status = 'syncing', updated_at = NOW() WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("mark sync state syncing: %w", db.Translate(err))
	}
	return nil
}

// RecordSuccess clears the error count and schedules the next pass
func (r *SyncRepository) RecordSuccess(ctx context.Context, manifestVersion int64, at, next time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE sync_state SET
			status = 'idle', manifest_version = $1,
			last_pass_at = $2, last_successful_pass_at = $2, next_pass_at = $3,
			error_message = NULL, error_count = 0, updated_at = NOW()
		WHERE id = 1`,
		manifestVersion, timeToPgTimestamptz(&at), timeToPgTimestamptz(&next),
	)
	if err != nil {
		return fmt.Errorf("record sync success: %w", db.Translate(err))
	}
	return nil
}

// RecordError increments the error count and schedules a retry
func (r *SyncRepository) RecordError(ctx context.Context, message string, at, next time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE sync_state SET
			status = 'error', last_pass_at = $2, next_pass_at = $3,
			error_message = $1, error_count = error_count + 1, updated_at = NOW()
		WHERE id = 1`,
		message, timeToPgTimestamptz(&at), timeToPgTimestamptz(&next),
	)
	if err != nil {
		return fmt.Errorf("record sync error: %w", db.Translate(err))
	}
	return nil
}

// InsertPass appends a pass to the audit log
func (r *SyncRepository) InsertPass(ctx context.Context, pass *SyncPass) error {
	stats, err := json.Marshal(pass.Stats)
	if err != nil {
		return fmt.Errorf("encode pass stats: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO sync_passes (
			id, trigger, status, started_at, completed_at, manifest_version,
			local_writes, remote_inserts, remote_deletes, stats, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pass.ID, pass.Trigger, string(pass.Status),
		timeToPgTimestamptz(&pass.StartedAt), timeToPgTimestamptz(&pass.CompletedAt),
		pass.ManifestVersion, pass.LocalWrites, pass.RemoteInserts, pass.RemoteDeletes,
		stats, stringToPgText(pass.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("insert sync pass: %w", db.Translate(err))
	}
	return nil
}

// ListPasses returns the most recent passes first
func (r *SyncRepository) ListPasses(ctx context.Context, limit, offset int32) ([]SyncPass, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, trigger, status, started_at, completed_at, manifest_version,
		       local_writes, remote_inserts, remote_deletes, stats, error_message
		FROM sync_passes
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync passes: %w", err)
	}
	defer rows.Close()

	passes := make([]SyncPass, 0, limit)
	for rows.Next() {
		var (
			pass   SyncPass
			status string
			stats  []byte
			errMsg pgtype.Text
		)
		if err := rows.Scan(
			&pass.ID, &pass.Trigger, &status, &pass.StartedAt, &pass.CompletedAt, &pass.ManifestVersion,
			&pass.LocalWrites, &pass.RemoteInserts, &pass.RemoteDeletes, &stats, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan sync pass: %w", err)
		}
		pass.Status = PassStatus(status)
		pass.ErrorMessage = pgTextToString(errMsg)
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &pass.Stats); err != nil {
				return nil, fmt.Errorf("decode pass stats: %w", err)
			}
		}
		passes = append(passes, pass)
	}
	return passes, rows.Err()
}
