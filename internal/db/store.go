package db

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// ElderlyStore defines persistence operations for elderly records.
// The interface allows mocking in service and sync tests.
type ElderlyStore interface {
	Create(rec *models.ElderlyRecord) (int64, error)
	GetByID(id int64) (*models.ElderlyRecord, error)
	GetByCode(code string) (*models.ElderlyRecord, error)
	GetByNIK(nik string) (*models.ElderlyRecord, error)
	List() ([]*models.ElderlyRecord, error)
	Update(id int64, upd ElderlyUpdate) error
	Delete(id int64) error
	BulkUpsert(records []*models.ElderlyRecord) error
	Count() (int, error)
	Clear() error
}

// ExaminationStore defines persistence operations for examination records.
type ExaminationStore interface {
	Create(rec *models.ExaminationRecord) (int64, error)
	GetByID(id int64) (*models.ExaminationRecord, error)
	ListByElderly(elderlyID int64, from, to *time.Time) ([]*models.ExaminationRecord, error)
	Update(id int64, upd ExaminationUpdate) error
	ReassignElderly(oldID, newID int64) error
	Delete(id int64) error
	BulkUpsert(records []*models.ExaminationRecord) error
	Count() (int, error)
	Clear() error
}

// QueueStore defines operations on the pending-mutation queue.
type QueueStore interface {
	Enqueue(entry *models.SyncQueueEntry) (int64, error)
	Pending() ([]*models.SyncQueueEntry, error)
	IncrementRetry(id int64) (int, error)
	Delete(id int64) error
	Count() (int, error)
	Clear() error
}

// Ensure the concrete repositories implement the interfaces at compile
// time.
var (
	_ ElderlyStore     = (*ElderlyRepo)(nil)
	_ ExaminationStore = (*ExaminationRepo)(nil)
	_ QueueStore       = (*SyncQueueRepo)(nil)
)

// Store bundles the three repositories sharing one database handle.
type Store struct {
	Elderly      *ElderlyRepo
	Examinations *ExaminationRepo
	Queue        *SyncQueueRepo
}

// NewStore creates the repositories over a shared connection.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		Elderly:      NewElderlyRepo(db, logger),
		Examinations: NewExaminationRepo(db, logger),
		Queue:        NewSyncQueueRepo(db, logger),
	}
}
