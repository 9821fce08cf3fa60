package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/classify"
	"github.com/vickyymosafan/posyandu-core/internal/db"
	"github.com/vickyymosafan/posyandu-core/internal/localid"
	"github.com/vickyymosafan/posyandu-core/internal/models"
	"github.com/vickyymosafan/posyandu-core/internal/remote"
)

// ExaminationInput carries the raw measurements of one health check.
// Categories are never accepted from the caller; they are always derived
// here so every stored category comes from the one classification table.
type ExaminationInput struct {
	ExamDate time.Time `json:"exam_date"`

	HeightCM  *float64 `json:"height_cm,omitempty"`
	WeightKG  *float64 `json:"weight_kg,omitempty"`
	Systolic  *int     `json:"systolic,omitempty"`
	Diastolic *int     `json:"diastolic,omitempty"`

	FastingGlucose      *float64 `json:"fasting_glucose,omitempty"`
	RandomGlucose       *float64 `json:"random_glucose,omitempty"`
	PostprandialGlucose *float64 `json:"postprandial_glucose,omitempty"`
	TotalCholesterol    *float64 `json:"total_cholesterol,omitempty"`
	UricAcid            *float64 `json:"uric_acid,omitempty"`
}

func (in ExaminationInput) hasPhysical() bool {
	return in.HeightCM != nil || in.WeightKG != nil || in.Systolic != nil || in.Diastolic != nil
}

func (in ExaminationInput) hasLab() bool {
	return in.FastingGlucose != nil || in.RandomGlucose != nil ||
		in.PostprandialGlucose != nil || in.TotalCholesterol != nil || in.UricAcid != nil
}

// ExaminationSubmission is the outcome of a submitted health check.
type ExaminationSubmission struct {
	Record      *models.ExaminationRecord `json:"record"`
	Provisional bool                      `json:"provisional"`
}

// ExaminationService records health checks for registered patients.
type ExaminationService struct {
	store   *db.Store
	api     remote.API
	monitor OnlineChecker
	logger  *zap.Logger
}

// NewExaminationService creates an examination service.
func NewExaminationService(store *db.Store, api remote.API, monitor OnlineChecker, logger *zap.Logger) *ExaminationService {
	return &ExaminationService{
		store:   store,
		api:     api,
		monitor: monitor,
		logger:  logger,
	}
}

// SubmitPhysical records a physical examination: anthropometry and blood
// pressure only.
func (s *ExaminationService) SubmitPhysical(ctx context.Context, elderlyCode string, in ExaminationInput) (*ExaminationSubmission, error) {
	if !in.hasPhysical() {
		return nil, apperrors.New(apperrors.ErrValidation, "physical examination needs at least one measurement")
	}
	if in.hasLab() {
		return nil, apperrors.New(apperrors.ErrValidation, "laboratory values do not belong in a physical examination")
	}
	return s.submit(ctx, elderlyCode, in)
}

// SubmitLab records a laboratory examination: glucose, cholesterol and uric
// acid only.
func (s *ExaminationService) SubmitLab(ctx context.Context, elderlyCode string, in ExaminationInput) (*ExaminationSubmission, error) {
	if !in.hasLab() {
		return nil, apperrors.New(apperrors.ErrValidation, "laboratory examination needs at least one value")
	}
	if in.hasPhysical() {
		return nil, apperrors.New(apperrors.ErrValidation, "physical measurements do not belong in a laboratory examination")
	}
	return s.submit(ctx, elderlyCode, in)
}

// SubmitCombined records a full check with both groups populated.
func (s *ExaminationService) SubmitCombined(ctx context.Context, elderlyCode string, in ExaminationInput) (*ExaminationSubmission, error) {
	if !in.hasPhysical() || !in.hasLab() {
		return nil, apperrors.New(apperrors.ErrValidation, "combined examination needs both physical and laboratory values")
	}
	return s.submit(ctx, elderlyCode, in)
}

func (s *ExaminationService) submit(ctx context.Context, elderlyCode string, in ExaminationInput) (*ExaminationSubmission, error) {
	if in.ExamDate.IsZero() {
		return nil, apperrors.New(apperrors.ErrValidation, "examination date is required")
	}
	if (in.Systolic == nil) != (in.Diastolic == nil) {
		return nil, apperrors.New(apperrors.ErrValidation, "blood pressure needs both systolic and diastolic")
	}

	elderly, err := s.store.Elderly.GetByCode(elderlyCode)
	if err != nil {
		return nil, err
	}
	if elderly == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no patient with code %s", elderlyCode)
	}

	now := time.Now().UTC().Truncate(time.Second)
	online := s.monitor.Online()

	var rec *models.ExaminationRecord
	if online {
		// Online submissions reject implausible values outright.
		rec, err = buildStrict(in, elderly.Gender)
		if err != nil {
			return nil, err
		}
	} else {
		// Offline the raw values are kept even when a category cannot be
		// derived; the posyandu visit must not be blocked by a dead link.
		rec = buildSafe(in, elderly.Gender)
	}
	rec.ElderlyID = elderly.ID
	rec.CreatedAt = now

	if online {
		created, err := s.api.CreateExamination(ctx, elderlyCode, rec)
		if err != nil {
			return nil, err
		}
		created.ElderlyID = elderly.ID
		created.CreatedAt = now
		created.SyncedAt = &now
		if _, err := s.store.Examinations.Create(created); err != nil {
			return nil, err
		}
		s.logger.Info("examination recorded online",
			zap.String("elderly_code", elderlyCode), zap.Int64("id", created.ID))
		return &ExaminationSubmission{Record: created, Provisional: false}, nil
	}

	rec.ID = localid.NewProvisional()
	if _, err := s.store.Examinations.Create(rec); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(models.ExaminationPayload{ElderlyCode: elderlyCode, Record: *rec})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode queue payload", err)
	}
	if _, err := s.store.Queue.Enqueue(&models.SyncQueueEntry{
		EntityKind: models.EntityExamination,
		Operation:  models.OperationCreate,
		Payload:    payload,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("examination recorded offline, queued for sync",
		zap.String("elderly_code", elderlyCode), zap.Int64("provisional_id", rec.ID))
	return &ExaminationSubmission{Record: rec, Provisional: true}, nil
}

// buildStrict classifies every present value, rejecting implausible input.
func buildStrict(in ExaminationInput, gender models.Gender) (*models.ExaminationRecord, error) {
	rec := &models.ExaminationRecord{
		ExamDate:  in.ExamDate,
		HeightCM:  in.HeightCM,
		WeightKG:  in.WeightKG,
		Systolic:  in.Systolic,
		Diastolic: in.Diastolic,

		FastingGlucose:      in.FastingGlucose,
		RandomGlucose:       in.RandomGlucose,
		PostprandialGlucose: in.PostprandialGlucose,
		TotalCholesterol:    in.TotalCholesterol,
		UricAcid:            in.UricAcid,
	}

	if in.WeightKG != nil && in.HeightCM != nil {
		bmi, err := classify.BMIFrom(*in.WeightKG, *in.HeightCM)
		if err != nil {
			return nil, err
		}
		category, err := classify.BMICategory(bmi)
		if err != nil {
			return nil, err
		}
		rec.BMI = &bmi
		rec.BMICategory = &category
	}
	if in.Systolic != nil && in.Diastolic != nil {
		category, emergency, err := classify.BloodPressureCategory(*in.Systolic, *in.Diastolic)
		if err != nil {
			return nil, err
		}
		rec.BPCategory = &category
		rec.BPEmergency = &emergency
	}
	if in.FastingGlucose != nil {
		category, err := classify.FastingGlucoseCategory(*in.FastingGlucose)
		if err != nil {
			return nil, err
		}
		rec.FastingGlucoseCategory = &category
	}
	if in.RandomGlucose != nil {
		category, err := classify.RandomGlucoseCategory(*in.RandomGlucose)
		if err != nil {
			return nil, err
		}
		rec.RandomGlucoseCategory = &category
	}
	if in.PostprandialGlucose != nil {
		category, err := classify.PostprandialGlucoseCategory(*in.PostprandialGlucose)
		if err != nil {
			return nil, err
		}
		rec.PostprandialGlucoseCategory = &category
	}
	if in.TotalCholesterol != nil {
		category, err := classify.CholesterolCategory(*in.TotalCholesterol)
		if err != nil {
			return nil, err
		}
		rec.TotalCholesterolCategory = &category
	}
	if in.UricAcid != nil {
		if _, err := classify.UricAcidCategory(*in.UricAcid, gender); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// buildSafe classifies what it can and keeps the rest raw.
func buildSafe(in ExaminationInput, gender models.Gender) *models.ExaminationRecord {
	rec := &models.ExaminationRecord{
		ExamDate:  in.ExamDate,
		HeightCM:  in.HeightCM,
		WeightKG:  in.WeightKG,
		Systolic:  in.Systolic,
		Diastolic: in.Diastolic,

		FastingGlucose:      in.FastingGlucose,
		RandomGlucose:       in.RandomGlucose,
		PostprandialGlucose: in.PostprandialGlucose,
		TotalCholesterol:    in.TotalCholesterol,
		UricAcid:            in.UricAcid,
	}

	if in.WeightKG != nil && in.HeightCM != nil {
		if bmi, err := classify.BMIFrom(*in.WeightKG, *in.HeightCM); err == nil {
			rec.BMI = &bmi
			rec.BMICategory = classify.BMICategorySafe(&bmi)
		}
	}
	rec.BPCategory, rec.BPEmergency = classify.BloodPressureCategorySafe(in.Systolic, in.Diastolic)
	rec.FastingGlucoseCategory = classify.FastingGlucoseCategorySafe(in.FastingGlucose)
	rec.RandomGlucoseCategory = classify.RandomGlucoseCategorySafe(in.RandomGlucose)
	rec.PostprandialGlucoseCategory = classify.PostprandialGlucoseCategorySafe(in.PostprandialGlucose)
	rec.TotalCholesterolCategory = classify.CholesterolCategorySafe(in.TotalCholesterol)
	return rec
}

// History returns a patient's examinations, newest first, optionally
// bounded by an inclusive date range.
func (s *ExaminationService) History(elderlyCode string, from, to *time.Time) ([]*models.ExaminationRecord, error) {
	elderly, err := s.store.Elderly.GetByCode(elderlyCode)
	if err != nil {
		return nil, err
	}
	if elderly == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no patient with code %s", elderlyCode)
	}
	return s.store.Examinations.ListByElderly(elderly.ID, from, to)
}

// TrendPoint is one dated value in a metric series.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Trends holds per-metric series in chronological order, ready for
// charting.
type Trends struct {
	BMI              []TrendPoint `json:"bmi"`
	Systolic         []TrendPoint `json:"systolic"`
	Diastolic        []TrendPoint `json:"diastolic"`
	FastingGlucose   []TrendPoint `json:"fasting_glucose"`
	RandomGlucose    []TrendPoint `json:"random_glucose"`
	TotalCholesterol []TrendPoint `json:"total_cholesterol"`
	UricAcid         []TrendPoint `json:"uric_acid"`
}

// Trends builds the chart series for one patient.
func (s *ExaminationService) Trends(elderlyCode string) (*Trends, error) {
	exams, err := s.History(elderlyCode, nil, nil)
	if err != nil {
		return nil, err
	}

	trends := &Trends{}
	// History is newest first; charts want oldest first.
	for i := len(exams) - 1; i >= 0; i-- {
		exam := exams[i]
		day := exam.ExamDate.Format("2006-01-02")
		appendPoint := func(series *[]TrendPoint, v *float64) {
			if v != nil {
				*series = append(*series, TrendPoint{Date: day, Value: *v})
			}
		}
		appendPoint(&trends.BMI, exam.BMI)
		if exam.Systolic != nil {
			trends.Systolic = append(trends.Systolic, TrendPoint{Date: day, Value: float64(*exam.Systolic)})
		}
		if exam.Diastolic != nil {
			trends.Diastolic = append(trends.Diastolic, TrendPoint{Date: day, Value: float64(*exam.Diastolic)})
		}
		appendPoint(&trends.FastingGlucose, exam.FastingGlucose)
		appendPoint(&trends.RandomGlucose, exam.RandomGlucose)
		appendPoint(&trends.TotalCholesterol, exam.TotalCholesterol)
		appendPoint(&trends.UricAcid, exam.UricAcid)
	}
	return trends, nil
}
