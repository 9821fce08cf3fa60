package models

import "time"

// ExaminationRecord represents one health check (pemeriksaan) for an
// elderly patient. The physical and lab groups are independently optional;
// a combined examination populates both. Every derived category field is
// either nil (source value absent) or consistent with the classification
// table for the corresponding source value.
type ExaminationRecord struct {
	ID        int64     `db:"id" json:"id"`
	ElderlyID int64     `db:"elderly_id" json:"elderly_id"`
	ExamDate  time.Time `db:"exam_date" json:"exam_date"`

	// Physical measurements
	HeightCM    *float64 `db:"height_cm" json:"height_cm,omitempty"`
	WeightKG    *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	BMI         *float64 `db:"bmi" json:"bmi,omitempty"`
	BMICategory *string  `db:"bmi_category" json:"bmi_category,omitempty"`

	// Blood pressure
	Systolic    *int    `db:"systolic" json:"systolic,omitempty"`
	Diastolic   *int    `db:"diastolic" json:"diastolic,omitempty"`
	BPCategory  *string `db:"bp_category" json:"bp_category,omitempty"`
	BPEmergency *bool   `db:"bp_emergency" json:"bp_emergency,omitempty"`

	// Lab values
	FastingGlucose              *float64 `db:"fasting_glucose" json:"fasting_glucose,omitempty"`
	FastingGlucoseCategory      *string  `db:"fasting_glucose_category" json:"fasting_glucose_category,omitempty"`
	RandomGlucose               *float64 `db:"random_glucose" json:"random_glucose,omitempty"`
	RandomGlucoseCategory       *string  `db:"random_glucose_category" json:"random_glucose_category,omitempty"`
	PostprandialGlucose         *float64 `db:"postprandial_glucose" json:"postprandial_glucose,omitempty"`
	PostprandialGlucoseCategory *string  `db:"postprandial_glucose_category" json:"postprandial_glucose_category,omitempty"`
	TotalCholesterol            *float64 `db:"total_cholesterol" json:"total_cholesterol,omitempty"`
	TotalCholesterolCategory    *string  `db:"total_cholesterol_category" json:"total_cholesterol_category,omitempty"`
	UricAcid                    *float64 `db:"uric_acid" json:"uric_acid,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SyncedAt  *time.Time `db:"synced_at" json:"synced_at,omitempty"`
}

// TableName returns the table name for ExaminationRecord.
func (ExaminationRecord) TableName() string {
	return "examination_records"
}

// HasPhysical reports whether the physical measurement group is populated.
func (e *ExaminationRecord) HasPhysical() bool {
	return e.HeightCM != nil || e.WeightKG != nil || e.Systolic != nil || e.Diastolic != nil
}

// HasLab reports whether the laboratory value group is populated.
func (e *ExaminationRecord) HasLab() bool {
	return e.FastingGlucose != nil || e.RandomGlucose != nil ||
		e.PostprandialGlucose != nil || e.TotalCholesterol != nil || e.UricAcid != nil
}

// Provisional reports whether the record was created offline and has not
// been confirmed by the server yet.
func (e *ExaminationRecord) Provisional() bool {
	return e.SyncedAt == nil
}
