package models

import (
	"encoding/json"
	"time"
)

// EntityKind identifies which entity a queued mutation targets.
type EntityKind string

const (
	EntityElderly     EntityKind = "elderly"
	EntityExamination EntityKind = "examination"
)

// Valid reports whether k is one of the defined entity kinds.
func (k EntityKind) Valid() bool {
	return k == EntityElderly || k == EntityExamination
}

// OperationKind identifies the mutation a queue entry replays.
// Update and delete are reserved; only create is produced today.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// SyncQueueEntry represents a locally-originated mutation awaiting replay
// against the remote API. Entries are appended by the offline submission
// paths and consumed only by the sync manager.
type SyncQueueEntry struct {
	ID         int64           `db:"id" json:"id"`
	EntityKind EntityKind      `db:"entity_kind" json:"entity_kind"`
	Operation  OperationKind   `db:"operation" json:"operation"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// TableName returns the table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// ExaminationPayload is the queue payload for an offline-created
// examination. It carries the patient's external code rather than the local
// elderly id, because a provisional elderly id is replaced by the server id
// before the examination is replayed.
type ExaminationPayload struct {
	ElderlyCode string            `json:"elderly_code"`
	Record      ExaminationRecord `json:"record"`
}
