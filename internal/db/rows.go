package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// dateLayout is the storage format for calendar dates. Lexicographic order
// matches chronological order, which the date-range queries rely on.
const dateLayout = "2006-01-02"

// Rows mirror the SQLite column layout; timestamps are unix seconds and
// calendar dates are YYYY-MM-DD text. The row<->domain mapping must be
// lossless for every defined field.

type elderlyRow struct {
	ID               int64
	Code             string
	NIK              string
	FamilyCardNumber string
	Name             string
	BirthDate        string
	Gender           string
	Address          string
	CreatedAt        int64
	SyncedAt         sql.NullInt64
}

func elderlyToRow(m *models.ElderlyRecord) elderlyRow {
	row := elderlyRow{
		ID:               m.ID,
		Code:             m.Code,
		NIK:              m.NIK,
		FamilyCardNumber: m.FamilyCardNumber,
		Name:             m.Name,
		BirthDate:        m.BirthDate.UTC().Format(dateLayout),
		Gender:           string(m.Gender),
		Address:          m.Address,
		CreatedAt:        m.CreatedAt.Unix(),
	}
	if m.SyncedAt != nil {
		row.SyncedAt = sql.NullInt64{Int64: m.SyncedAt.Unix(), Valid: true}
	}
	return row
}

func (r elderlyRow) toDomain() (*models.ElderlyRecord, error) {
	birthDate, err := time.ParseInLocation(dateLayout, r.BirthDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid birth date %q: %w", r.BirthDate, err)
	}
	m := &models.ElderlyRecord{
		ID:               r.ID,
		Code:             r.Code,
		NIK:              r.NIK,
		FamilyCardNumber: r.FamilyCardNumber,
		Name:             r.Name,
		BirthDate:        birthDate,
		Gender:           models.Gender(r.Gender),
		Address:          r.Address,
		CreatedAt:        time.Unix(r.CreatedAt, 0).UTC(),
	}
	if r.SyncedAt.Valid {
		t := time.Unix(r.SyncedAt.Int64, 0).UTC()
		m.SyncedAt = &t
	}
	return m, nil
}

type examinationRow struct {
	ID        int64
	ElderlyID int64
	ExamDate  string

	HeightCM    sql.NullFloat64
	WeightKG    sql.NullFloat64
	BMI         sql.NullFloat64
	BMICategory sql.NullString

	Systolic    sql.NullInt64
	Diastolic   sql.NullInt64
	BPCategory  sql.NullString
	BPEmergency sql.NullBool

	FastingGlucose              sql.NullFloat64
	FastingGlucoseCategory      sql.NullString
	RandomGlucose               sql.NullFloat64
	RandomGlucoseCategory       sql.NullString
	PostprandialGlucose         sql.NullFloat64
	PostprandialGlucoseCategory sql.NullString
	TotalCholesterol            sql.NullFloat64
	TotalCholesterolCategory    sql.NullString
	UricAcid                    sql.NullFloat64

	CreatedAt int64
	SyncedAt  sql.NullInt64
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func examinationToRow(m *models.ExaminationRecord) examinationRow {
	row := examinationRow{
		ID:        m.ID,
		ElderlyID: m.ElderlyID,
		ExamDate:  m.ExamDate.UTC().Format(dateLayout),

		HeightCM:    nullFloat(m.HeightCM),
		WeightKG:    nullFloat(m.WeightKG),
		BMI:         nullFloat(m.BMI),
		BMICategory: nullString(m.BMICategory),

		Systolic:    nullInt(m.Systolic),
		Diastolic:   nullInt(m.Diastolic),
		BPCategory:  nullString(m.BPCategory),
		BPEmergency: nullBool(m.BPEmergency),

		FastingGlucose:              nullFloat(m.FastingGlucose),
		FastingGlucoseCategory:      nullString(m.FastingGlucoseCategory),
		RandomGlucose:               nullFloat(m.RandomGlucose),
		RandomGlucoseCategory:       nullString(m.RandomGlucoseCategory),
		PostprandialGlucose:         nullFloat(m.PostprandialGlucose),
		PostprandialGlucoseCategory: nullString(m.PostprandialGlucoseCategory),
		TotalCholesterol:            nullFloat(m.TotalCholesterol),
		TotalCholesterolCategory:    nullString(m.TotalCholesterolCategory),
		UricAcid:                    nullFloat(m.UricAcid),

		CreatedAt: m.CreatedAt.Unix(),
	}
	if m.SyncedAt != nil {
		row.SyncedAt = sql.NullInt64{Int64: m.SyncedAt.Unix(), Valid: true}
	}
	return row
}

func (r examinationRow) toDomain() (*models.ExaminationRecord, error) {
	examDate, err := time.ParseInLocation(dateLayout, r.ExamDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid exam date %q: %w", r.ExamDate, err)
	}
	m := &models.ExaminationRecord{
		ID:        r.ID,
		ElderlyID: r.ElderlyID,
		ExamDate:  examDate,

		HeightCM:    floatPtr(r.HeightCM),
		WeightKG:    floatPtr(r.WeightKG),
		BMI:         floatPtr(r.BMI),
		BMICategory: stringPtr(r.BMICategory),

		Systolic:    intPtr(r.Systolic),
		Diastolic:   intPtr(r.Diastolic),
		BPCategory:  stringPtr(r.BPCategory),
		BPEmergency: boolPtr(r.BPEmergency),

		FastingGlucose:              floatPtr(r.FastingGlucose),
		FastingGlucoseCategory:      stringPtr(r.FastingGlucoseCategory),
		RandomGlucose:               floatPtr(r.RandomGlucose),
		RandomGlucoseCategory:       stringPtr(r.RandomGlucoseCategory),
		PostprandialGlucose:         floatPtr(r.PostprandialGlucose),
		PostprandialGlucoseCategory: stringPtr(r.PostprandialGlucoseCategory),
		TotalCholesterol:            floatPtr(r.TotalCholesterol),
		TotalCholesterolCategory:    stringPtr(r.TotalCholesterolCategory),
		UricAcid:                    floatPtr(r.UricAcid),

		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}
	if r.SyncedAt.Valid {
		t := time.Unix(r.SyncedAt.Int64, 0).UTC()
		m.SyncedAt = &t
	}
	return m, nil
}
