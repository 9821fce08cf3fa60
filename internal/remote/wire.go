package remote

import (
	"encoding/json"
	"time"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

const dateLayout = "2006-01-02"

// apiResponse is the backend's standard response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// elderlyWire is the elderly record as the backend exchanges it. Dates go
// over the wire as YYYY-MM-DD, timestamps as RFC 3339.
type elderlyWire struct {
	ID               int64   `json:"id,omitempty"`
	Code             string  `json:"code"`
	NIK              string  `json:"nik"`
	FamilyCardNumber string  `json:"family_card_number"`
	Name             string  `json:"name"`
	BirthDate        string  `json:"birth_date"`
	Gender           string  `json:"gender"`
	Address          string  `json:"address"`
	CreatedAt        *string `json:"created_at,omitempty"`
}

func elderlyToWire(rec *models.ElderlyRecord) elderlyWire {
	return elderlyWire{
		Code:             rec.Code,
		NIK:              rec.NIK,
		FamilyCardNumber: rec.FamilyCardNumber,
		Name:             rec.Name,
		BirthDate:        rec.BirthDate.Format(dateLayout),
		Gender:           string(rec.Gender),
		Address:          rec.Address,
	}
}

func (w elderlyWire) toDomain() (*models.ElderlyRecord, error) {
	birthDate, err := time.Parse(dateLayout, w.BirthDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServer, "malformed birth date in server response", err)
	}
	rec := &models.ElderlyRecord{
		ID:               w.ID,
		Code:             w.Code,
		NIK:              w.NIK,
		FamilyCardNumber: w.FamilyCardNumber,
		Name:             w.Name,
		BirthDate:        birthDate,
		Gender:           models.Gender(w.Gender),
		Address:          w.Address,
	}
	if w.CreatedAt != nil {
		createdAt, err := time.Parse(time.RFC3339, *w.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrServer, "malformed created_at in server response", err)
		}
		rec.CreatedAt = createdAt.UTC().Truncate(time.Second)
	}
	return rec, nil
}

// examinationWire is the examination record as the backend exchanges it.
// The elderly patient is addressed by external code, never by local id.
type examinationWire struct {
	ID          int64  `json:"id,omitempty"`
	ElderlyCode string `json:"elderly_code"`
	ExamDate    string `json:"exam_date"`

	HeightCM    *float64 `json:"height_cm,omitempty"`
	WeightKG    *float64 `json:"weight_kg,omitempty"`
	BMI         *float64 `json:"bmi,omitempty"`
	BMICategory *string  `json:"bmi_category,omitempty"`

	Systolic    *int    `json:"systolic,omitempty"`
	Diastolic   *int    `json:"diastolic,omitempty"`
	BPCategory  *string `json:"bp_category,omitempty"`
	BPEmergency *bool   `json:"bp_emergency,omitempty"`

	FastingGlucose              *float64 `json:"fasting_glucose,omitempty"`
	FastingGlucoseCategory      *string  `json:"fasting_glucose_category,omitempty"`
	RandomGlucose               *float64 `json:"random_glucose,omitempty"`
	RandomGlucoseCategory       *string  `json:"random_glucose_category,omitempty"`
	PostprandialGlucose         *float64 `json:"postprandial_glucose,omitempty"`
	PostprandialGlucoseCategory *string  `json:"postprandial_glucose_category,omitempty"`
	TotalCholesterol            *float64 `json:"total_cholesterol,omitempty"`
	TotalCholesterolCategory    *string  `json:"total_cholesterol_category,omitempty"`
	UricAcid                    *float64 `json:"uric_acid,omitempty"`
}

func examinationToWire(code string, rec *models.ExaminationRecord) examinationWire {
	return examinationWire{
		ElderlyCode: code,
		ExamDate:    rec.ExamDate.Format(dateLayout),

		HeightCM:    rec.HeightCM,
		WeightKG:    rec.WeightKG,
		BMI:         rec.BMI,
		BMICategory: rec.BMICategory,

		Systolic:    rec.Systolic,
		Diastolic:   rec.Diastolic,
		BPCategory:  rec.BPCategory,
		BPEmergency: rec.BPEmergency,

		FastingGlucose:              rec.FastingGlucose,
		FastingGlucoseCategory:      rec.FastingGlucoseCategory,
		RandomGlucose:               rec.RandomGlucose,
		RandomGlucoseCategory:       rec.RandomGlucoseCategory,
		PostprandialGlucose:         rec.PostprandialGlucose,
		PostprandialGlucoseCategory: rec.PostprandialGlucoseCategory,
		TotalCholesterol:            rec.TotalCholesterol,
		TotalCholesterolCategory:    rec.TotalCholesterolCategory,
		UricAcid:                    rec.UricAcid,
	}
}

func (w examinationWire) toDomain(elderlyID int64) (*models.ExaminationRecord, error) {
	examDate, err := time.Parse(dateLayout, w.ExamDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServer, "malformed exam date in server response", err)
	}
	return &models.ExaminationRecord{
		ID:        w.ID,
		ElderlyID: elderlyID,
		ExamDate:  examDate,

		HeightCM:    w.HeightCM,
		WeightKG:    w.WeightKG,
		BMI:         w.BMI,
		BMICategory: w.BMICategory,

		Systolic:    w.Systolic,
		Diastolic:   w.Diastolic,
		BPCategory:  w.BPCategory,
		BPEmergency: w.BPEmergency,

		FastingGlucose:              w.FastingGlucose,
		FastingGlucoseCategory:      w.FastingGlucoseCategory,
		RandomGlucose:               w.RandomGlucose,
		RandomGlucoseCategory:       w.RandomGlucoseCategory,
		PostprandialGlucose:         w.PostprandialGlucose,
		PostprandialGlucoseCategory: w.PostprandialGlucoseCategory,
		TotalCholesterol:            w.TotalCholesterol,
		TotalCholesterolCategory:    w.TotalCholesterolCategory,
		UricAcid:                    w.UricAcid,
	}, nil
}
