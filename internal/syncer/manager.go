// Package syncer drains the pending-mutation queue against the remote API
// and refreshes the local cache from the server afterwards. Replay is
// best-effort at-least-once: an entry survives transient failures and is
// dropped only after repeated permanent ones.
package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/db"
	"github.com/vickyymosafan/posyandu-core/internal/models"
	"github.com/vickyymosafan/posyandu-core/internal/remote"
)

// maxRetries is the retry ceiling per queue entry. An entry whose stored
// retry count exceeds this is dropped, so each entry is attempted at most
// maxRetries+1 times.
const maxRetries = 3

// Status represents the current sync state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// OnlineChecker reports the current connectivity state.
type OnlineChecker interface {
	Online() bool
}

// Result describes one SyncAll run.
type Result struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Skipped   bool     `json:"skipped"`
	Drained   int      `json:"drained"`
	Failed    int      `json:"failed"`
	Dropped   int      `json:"dropped"`
	Refreshed int      `json:"refreshed"`
	Errors    []string `json:"errors,omitempty"`
}

// Manager owns the drain-and-refresh cycle.
type Manager struct {
	store   *db.Store
	api     remote.API
	monitor OnlineChecker
	logger  *zap.Logger

	mu         sync.Mutex
	syncing    bool
	status     Status
	lastSync   *time.Time
	lastResult *Result
}

// NewManager creates a sync manager.
func NewManager(store *db.Store, api remote.API, monitor OnlineChecker, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		api:     api,
		monitor: monitor,
		logger:  logger,
		status:  StatusIdle,
	}
}

// Status returns the current sync status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastSync returns the end time of the last completed run, nil before the
// first one.
func (m *Manager) LastSync() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// LastResult returns the result of the last run, nil before the first one.
func (m *Manager) LastResult() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastResult
}

// SyncAll drains the queue and refreshes the local cache. It never returns
// an error: sync is opportunistic and every failure mode either leaves the
// entry queued for the next run or is recorded on the Result. Offline and
// already-running calls are no-ops.
func (m *Manager) SyncAll(ctx context.Context) *Result {
	result := &Result{StartTime: time.Now().UTC()}

	if !m.monitor.Online() {
		m.logger.Info("sync skipped, offline")
		result.Skipped = true
		result.EndTime = time.Now().UTC()
		return result
	}

	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		m.logger.Info("sync already in progress, skipping")
		result.Skipped = true
		result.EndTime = time.Now().UTC()
		return result
	}
	m.syncing = true
	m.status = StatusSyncing
	m.mu.Unlock()

	defer func() {
		result.EndTime = time.Now().UTC()
		result.Duration = result.EndTime.Sub(result.StartTime)

		m.mu.Lock()
		m.syncing = false
		if len(result.Errors) > 0 {
			m.status = StatusFailed
		} else {
			m.status = StatusIdle
		}
		m.lastSync = &result.EndTime
		m.lastResult = result
		m.mu.Unlock()

		m.logger.Info("sync finished",
			zap.Int("drained", result.Drained),
			zap.Int("failed", result.Failed),
			zap.Int("dropped", result.Dropped),
			zap.Int("refreshed", result.Refreshed),
			zap.Duration("duration", result.Duration))
	}()

	m.drain(ctx, result)
	m.refresh(ctx, result)
	return result
}

// drain replays pending entries in creation order.
func (m *Manager) drain(ctx context.Context, result *Result) {
	pending, err := m.store.Queue.Pending()
	if err != nil {
		m.logger.Error("failed to read sync queue", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return
	}

	for _, entry := range pending {
		select {
		case <-ctx.Done():
			result.Errors = append(result.Errors, ctx.Err().Error())
			return
		default:
		}

		if err := m.replay(ctx, entry); err != nil {
			m.handleFailure(entry, err, result)
			continue
		}

		if err := m.store.Queue.Delete(entry.ID); err != nil {
			m.logger.Error("failed to remove drained entry",
				zap.Int64("entry_id", entry.ID), zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Drained++
	}
}

// handleFailure increments the retry count and drops the entry once the
// ceiling is exceeded.
func (m *Manager) handleFailure(entry *models.SyncQueueEntry, cause error, result *Result) {
	count, err := m.store.Queue.IncrementRetry(entry.ID)
	if err != nil {
		m.logger.Error("failed to record retry",
			zap.Int64("entry_id", entry.ID), zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return
	}

	if count > maxRetries {
		if err := m.store.Queue.Delete(entry.ID); err != nil {
			m.logger.Error("failed to drop exhausted entry",
				zap.Int64("entry_id", entry.ID), zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			return
		}
		m.logger.Warn("queue entry dropped after retry ceiling",
			zap.Int64("entry_id", entry.ID),
			zap.String("entity_kind", string(entry.EntityKind)),
			zap.Int("retries", count),
			zap.Error(cause))
		result.Dropped++
		return
	}

	m.logger.Warn("queue entry replay failed, will retry",
		zap.Int64("entry_id", entry.ID),
		zap.Int("retries", count),
		zap.Error(cause))
	result.Failed++
}

// replay dispatches one entry by entity kind.
func (m *Manager) replay(ctx context.Context, entry *models.SyncQueueEntry) error {
	switch entry.EntityKind {
	case models.EntityElderly:
		return m.replayElderly(ctx, entry)
	case models.EntityExamination:
		return m.replayExamination(ctx, entry)
	default:
		return apperrors.Newf(apperrors.ErrSyncFailed, "unknown entity kind %q", entry.EntityKind)
	}
}

func (m *Manager) replayElderly(ctx context.Context, entry *models.SyncQueueEntry) error {
	var rec models.ElderlyRecord
	if err := json.Unmarshal(entry.Payload, &rec); err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "malformed elderly payload", err)
	}

	created, err := m.api.CreateElderly(ctx, &rec)
	if err != nil {
		// A duplicate means a previous replay reached the server but the
		// response was lost. The record is already there; refresh pulls it.
		if apperrors.Is(err, apperrors.ErrDuplicate) {
			m.logger.Warn("elderly record already on server, treating as applied",
				zap.String("code", rec.Code))
			return nil
		}
		return err
	}

	return m.applyServerElderly(created, rec.CreatedAt)
}

func (m *Manager) replayExamination(ctx context.Context, entry *models.SyncQueueEntry) error {
	var payload models.ExaminationPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "malformed examination payload", err)
	}

	created, err := m.api.CreateExamination(ctx, payload.ElderlyCode, &payload.Record)
	if err != nil {
		return err
	}

	// The provisional row is replaced by the authoritative one; linkage
	// follows the current local elderly id for the same code.
	if err := m.store.Examinations.Delete(payload.Record.ID); err != nil {
		return err
	}
	if local, err := m.store.Elderly.GetByCode(payload.ElderlyCode); err == nil && local != nil {
		created.ElderlyID = local.ID
	}
	now := time.Now().UTC().Truncate(time.Second)
	created.CreatedAt = payload.Record.CreatedAt
	created.SyncedAt = &now
	return m.store.Examinations.BulkUpsert([]*models.ExaminationRecord{created})
}

// applyServerElderly stores the authoritative elderly record locally,
// stamping it synced and repointing any examinations that referenced the
// provisional id.
func (m *Manager) applyServerElderly(rec *models.ElderlyRecord, createdAt time.Time) error {
	existing, err := m.store.Elderly.GetByCode(rec.Code)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec.SyncedAt = &now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = createdAt
	}
	if err := m.store.Elderly.BulkUpsert([]*models.ElderlyRecord{rec}); err != nil {
		return err
	}

	if existing != nil && existing.ID != rec.ID {
		return m.store.Examinations.ReassignElderly(existing.ID, rec.ID)
	}
	return nil
}

// refresh pulls the server's elderly collection into the local cache.
// Failures are logged and recorded but never fail the run; the drained
// queue state is already durable.
func (m *Manager) refresh(ctx context.Context, result *Result) {
	records, err := m.api.ListElderly(ctx)
	if err != nil {
		m.logger.Warn("refresh failed, keeping local cache", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return
	}

	for _, rec := range records {
		if err := m.applyServerElderly(rec, rec.CreatedAt); err != nil {
			m.logger.Warn("failed to apply server record",
				zap.String("code", rec.Code), zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Refreshed++
	}
}
