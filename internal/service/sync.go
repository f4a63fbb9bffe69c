package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"storage-sync/internal/logger"
	"storage-sync/internal/record"
	"storage-sync/internal/remote"
	"storage-sync/internal/repository"
	"storage-sync/internal/storagesync"
	"storage-sync/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Backoff intervals for error retries (exponential backoff)
var backoffIntervals = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
}

// maxPushAttempts bounds how often one pass re-reads the remote set after
// another device pushed first.
const maxPushAttempts = 3

// Pass triggers
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// ErrPassInProgress is returned when a pass is requested while one runs.
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// RecipientStore is the local store a pass reads and writes.
type RecipientStore interface {
	LoadSnapshot(ctx context.Context) (*storagesync.LocalState, error)
	WithinTx(ctx context.Context, fn func(storagesync.Writer) error) error
}

// PassStore persists the job state and the pass log.
type PassStore interface {
	GetState(ctx context.Context) (*repository.SyncState, error)
	MarkSyncing(ctx context.Context) error
	RecordSuccess(ctx context.Context, manifestVersion int64, at, next time.Time) error
	RecordError(ctx context.Context, message string, at, next time.Time) error
	InsertPass(ctx context.Context, pass *repository.SyncPass) error
	ListPasses(ctx context.Context, limit, offset int32) ([]repository.SyncPass, error)
}

// PassResult summarizes a completed pass.
type PassResult struct {
	ID              uuid.UUID         `json:"id"`
	ManifestVersion int64             `json:"manifest_version"`
	Attempts        int               `json:"attempts"`
	LocalWrites     int               `json:"local_writes"`
	RemoteInserts   int               `json:"remote_inserts"`
	RemoteDeletes   int               `json:"remote_deletes"`
	Stats           storagesync.Stats `json:"stats"`
}

// Status is the job state plus whether a pass is running right now.
type Status struct {
	State       *repository.SyncState `json:"state"`
	InProgress  bool                  `json:"in_progress"`
	RemoteStore string                `json:"remote_store"`
}

// SyncService runs reconciliation passes between the local recipient store
// and the remote storage service. At most one pass runs at a time.
type SyncService struct {
	recipients  RecipientStore
	passes      PassStore
	remote      remote.Store
	keys        record.KeyGenerator
	minInterval time.Duration
	now         func() time.Time
	tracer      trace.Tracer

	running  sync.Mutex
	inFlight atomic.Bool
}

// NewSyncService creates a new sync service
func NewSyncService(
	recipients RecipientStore,
	passes PassStore,
	store remote.Store,
	keys record.KeyGenerator,
	minInterval time.Duration,
) *SyncService {
	return &SyncService{
		recipients:  recipients,
		passes:      passes,
		remote:      store,
		keys:        keys,
		minInterval: minInterval,
		now:         time.Now,
		tracer:      telemetry.Tracer(),
	}
}

// RunPass runs one pass immediately.
func (s *SyncService) RunPass(ctx context.Context) (*PassResult, error) {
	return s.runPass(ctx, TriggerManual)
}

// RunDuePass runs a pass when the next scheduled time has passed. It returns
// a nil result when nothing was due or a pass was already running.
func (s *SyncService) RunDuePass(ctx context.Context) (*PassResult, error) {
	state, err := s.passes.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}

	now := s.now()
	if state.NextPassAt != nil && now.Before(*state.NextPassAt) {
		logger.Debug().
			Time("next_pass_at", *state.NextPassAt).
			Msg("no reconciliation pass due")
		return nil, nil
	}

	result, err := s.runPass(ctx, TriggerScheduled)
	if errors.Is(err, ErrPassInProgress) {
		logger.Debug().Msg("skipping scheduled pass, one is already running")
		return nil, nil
	}
	return result, err
}

// Status returns the current job state.
func (s *SyncService) Status(ctx context.Context) (*Status, error) {
	state, err := s.passes.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}

	return &Status{State: state, InProgress: s.inFlight.Load(), RemoteStore: s.remote.Name()}, nil
}

// ListPasses returns the pass log, most recent first.
func (s *SyncService) ListPasses(ctx context.Context, limit, offset int32) ([]repository.SyncPass, error) {
	return s.passes.ListPasses(ctx, limit, offset)
}

func (s *SyncService) runPass(ctx context.Context, trigger string) (*PassResult, error) {
	if !s.running.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.running.Unlock()
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	ctx, span := s.tracer.Start(ctx, "storagesync.pass",
		trace.WithAttributes(attribute.String("sync.trigger", trigger)),
	)
	defer span.End()
	log := logger.FromContext(ctx)

	state, err := s.passes.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	if err := s.passes.MarkSyncing(ctx); err != nil {
		return nil, fmt.Errorf("mark syncing: %w", err)
	}

	passID := uuid.New()
	started := s.now()

	log.Info().
		Str("pass_id", passID.String()).
		Str("trigger", trigger).
		Str("remote_store", s.remote.Name()).
		Msg("starting reconciliation pass")

	result, passErr := s.reconcile(ctx)
	completed := s.now()

	pass := &repository.SyncPass{
		ID:          passID,
		Trigger:     trigger,
		StartedAt:   started,
		CompletedAt: completed,
	}
	if result != nil {
		result.ID = passID
		pass.ManifestVersion = result.ManifestVersion
		pass.LocalWrites = int32(result.LocalWrites)
		pass.RemoteInserts = int32(result.RemoteInserts)
		pass.RemoteDeletes = int32(result.RemoteDeletes)
		pass.Stats = result.Stats
	}

	if passErr != nil {
		backoffIdx := int(state.ErrorCount)
		if backoffIdx >= len(backoffIntervals) {
			backoffIdx = len(backoffIntervals) - 1
		}
		next := completed.Add(backoffIntervals[backoffIdx])

		errMsg := passErr.Error()
		pass.Status = repository.PassStatusError
		pass.ErrorMessage = &errMsg

		if err := s.passes.RecordError(ctx, errMsg, completed, next); err != nil {
			log.Error().Err(err).Msg("failed to record sync error")
		}
		if err := s.passes.InsertPass(ctx, pass); err != nil {
			log.Error().Err(err).Msg("failed to record sync pass")
		}

		span.RecordError(passErr)
		span.SetStatus(codes.Error, errMsg)

		log.Error().
			Err(passErr).
			Str("pass_id", passID.String()).
			Int("error_count", int(state.ErrorCount)+1).
			Time("next_pass_at", next).
			Msg("reconciliation pass failed")
		return nil, passErr
	}

	next := completed.Add(s.minInterval)
	pass.Status = repository.PassStatusSuccess
	if err := s.passes.RecordSuccess(ctx, result.ManifestVersion, completed, next); err != nil {
		log.Error().Err(err).Msg("failed to record sync success")
	}
	if err := s.passes.InsertPass(ctx, pass); err != nil {
		log.Error().Err(err).Msg("failed to record sync pass")
	}

	span.SetAttributes(
		attribute.Int64("sync.manifest_version", result.ManifestVersion),
		attribute.Int("sync.local_writes", result.LocalWrites),
		attribute.Int("sync.remote_inserts", result.RemoteInserts),
		attribute.Int("sync.remote_deletes", result.RemoteDeletes),
	)

	log.Info().
		Str("pass_id", passID.String()).
		Int64("manifest_version", result.ManifestVersion).
		Int("attempts", result.Attempts).
		Int("remote_records", result.Stats.Remote).
		Int("local_writes", result.LocalWrites).
		Int("remote_inserts", result.RemoteInserts).
		Int("remote_deletes", result.RemoteDeletes).
		Dur("duration", completed.Sub(started)).
		Msg("reconciliation pass completed")

	return result, nil
}

// reconcile fetches, reconciles, applies and pushes. When another device
// pushes between fetch and push it starts over from a fresh fetch; local
// writes already committed are re-merged idempotently.
func (s *SyncService) reconcile(ctx context.Context) (*PassResult, error) {
	result := &PassResult{}

	for attempt := 1; attempt <= maxPushAttempts; attempt++ {
		result.Attempts = attempt

		manifest, err := s.remote.Fetch(ctx)
		if err != nil {
			return result, fmt.Errorf("fetch remote manifest: %w", err)
		}
		result.ManifestVersion = manifest.Version

		snapshot, err := s.recipients.LoadSnapshot(ctx)
		if err != nil {
			return result, fmt.Errorf("load local snapshot: %w", err)
		}

		reconciler := storagesync.NewReconciler(snapshot, s.keys)
		plan := reconciler.Reconcile(manifest.Records)
		result.Stats = plan.Stats

		if plan.HasLocalChanges() {
			err := s.recipients.WithinTx(ctx, func(w storagesync.Writer) error {
				return reconciler.Apply(ctx, w, plan)
			})
			if err != nil {
				return result, fmt.Errorf("apply local writes: %w", err)
			}
			result.LocalWrites += len(plan.Writes) + len(plan.Assignments)
		}

		if !plan.HasRemoteChanges() {
			return result, nil
		}

		op := remote.WriteOperation{
			BaseVersion: manifest.Version,
			Inserts:     plan.InsertRecords(),
			Deletes:     plan.Deletes,
		}
		version, err := s.remote.Write(ctx, op)
		if errors.Is(err, remote.ErrVersionConflict) {
			logger.Warn().
				Int64("base_version", manifest.Version).
				Int("attempt", attempt).
				Msg("remote set changed during pass, reconciling again")
			continue
		}
		if err != nil {
			return result, fmt.Errorf("push remote changes: %w", err)
		}

		result.ManifestVersion = version
		result.RemoteInserts = len(op.Inserts)
		result.RemoteDeletes = len(op.Deletes)
		return result, nil
	}

	return result, fmt.Errorf("push remote changes after %d attempts: %w", maxPushAttempts, remote.ErrVersionConflict)
}
