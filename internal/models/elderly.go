// Package models provides data model definitions for the posyandu core.
package models

import "time"

// Gender is the registered gender of an elderly patient.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the defined genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// ElderlyRecord represents a registered elderly patient (lansia).
//
// A record created offline carries a provisional negative ID and a nil
// SyncedAt until the next successful sync replaces it with the server copy.
type ElderlyRecord struct {
	ID               int64      `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	NIK              string     `db:"nik" json:"nik"`
	FamilyCardNumber string     `db:"family_card_number" json:"family_card_number"`
	Name             string     `db:"name" json:"name"`
	BirthDate        time.Time  `db:"birth_date" json:"birth_date"`
	Gender           Gender     `db:"gender" json:"gender"`
	Address          string     `db:"address" json:"address"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	SyncedAt         *time.Time `db:"synced_at" json:"synced_at,omitempty"`
}

// TableName returns the table name for ElderlyRecord.
func (ElderlyRecord) TableName() string {
	return "elderly_records"
}

// Provisional reports whether the record was created offline and has not
// been confirmed by the server yet.
func (e *ElderlyRecord) Provisional() bool {
	return e.SyncedAt == nil
}
