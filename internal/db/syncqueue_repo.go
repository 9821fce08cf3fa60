package db

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// SyncQueueRepo provides operations on the pending-mutation queue. The
// offline submission paths are the sole producers; the sync manager is the
// sole consumer.
type SyncQueueRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSyncQueueRepo creates a new SyncQueueRepo.
func NewSyncQueueRepo(db *sql.DB, logger *zap.Logger) *SyncQueueRepo {
	return &SyncQueueRepo{db: db, logger: logger.Named("sync_queue_repo")}
}

// Enqueue validates and appends a pending mutation, returning its id.
func (r *SyncQueueRepo) Enqueue(entry *models.SyncQueueEntry) (int64, error) {
	switch {
	case entry == nil:
		return 0, apperrors.New(apperrors.ErrValidation, "queue entry is nil")
	case !entry.EntityKind.Valid():
		return 0, apperrors.Newf(apperrors.ErrValidation, "unknown entity kind %q", entry.EntityKind)
	case entry.Operation != models.OperationCreate:
		// update/delete are reserved but not replayed yet
		return 0, apperrors.Newf(apperrors.ErrValidation, "unsupported operation %q", entry.Operation)
	case len(entry.Payload) == 0:
		return 0, apperrors.New(apperrors.ErrValidation, "queue entry payload is empty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := r.db.Exec(`
	INSERT INTO sync_queue (entity_kind, operation, payload, retry_count, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		string(entry.EntityKind), string(entry.Operation), string(entry.Payload),
		entry.RetryCount, entry.CreatedAt.Unix())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to enqueue sync entry", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to read queue entry id", err)
	}

	r.logger.Info("sync entry enqueued",
		zap.Int64("id", entry.ID),
		zap.String("entity_kind", string(entry.EntityKind)),
		zap.String("operation", string(entry.Operation)))
	return entry.ID, nil
}

// Pending returns all queue entries in creation order, oldest first.
func (r *SyncQueueRepo) Pending() ([]*models.SyncQueueEntry, error) {
	rows, err := r.db.Query(`
	SELECT id, entity_kind, operation, payload, retry_count, created_at
	FROM sync_queue ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list queue entries", err)
	}
	defer rows.Close()

	var entries []*models.SyncQueueEntry
	for rows.Next() {
		var e models.SyncQueueEntry
		var kind, op, payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &kind, &op, &payload, &e.RetryCount, &createdAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan queue entry", err)
		}
		e.EntityKind = models.EntityKind(kind)
		e.Operation = models.OperationKind(op)
		e.Payload = []byte(payload)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate queue entries", err)
	}
	return entries, nil
}

// IncrementRetry bumps an entry's retry count and returns the new value.
func (r *SyncQueueRepo) IncrementRetry(id int64) (int, error) {
	_, err := r.db.Exec(`UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to increment retry count", err)
	}
	var count int
	err = r.db.QueryRow(`SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, apperrors.Newf(apperrors.ErrNotFound, "queue entry %d not found", id)
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to read retry count", err)
	}
	r.logger.Warn("sync entry retry incremented", zap.Int64("id", id), zap.Int("retry_count", count))
	return count, nil
}

// Delete removes an entry. Deleting a nonexistent id is not an error.
func (r *SyncQueueRepo) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete queue entry", err)
	}
	r.logger.Info("sync entry removed", zap.Int64("id", id))
	return nil
}

// Count returns the number of queued entries.
func (r *SyncQueueRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count queue entries", err)
	}
	return n, nil
}

// Clear removes all entries.
func (r *SyncQueueRepo) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM sync_queue`); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear sync queue", err)
	}
	r.logger.Warn("sync queue cleared")
	return nil
}
