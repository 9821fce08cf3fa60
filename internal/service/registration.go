// Package service implements the submission paths. Every write goes through
// here and branches on connectivity: online writes hit the remote API first
// and mirror the authoritative record locally; offline writes store a
// provisional record and queue the mutation for replay.
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/db"
	"github.com/vickyymosafan/posyandu-core/internal/localid"
	"github.com/vickyymosafan/posyandu-core/internal/models"
	"github.com/vickyymosafan/posyandu-core/internal/remote"
)

// OnlineChecker reports the current connectivity state.
type OnlineChecker interface {
	Online() bool
}

// RegistrationInput is a new-patient request.
type RegistrationInput struct {
	NIK              string        `json:"nik"`
	FamilyCardNumber string        `json:"family_card_number"`
	Name             string        `json:"name"`
	BirthDate        time.Time     `json:"birth_date"`
	Gender           models.Gender `json:"gender"`
	Address          string        `json:"address"`
}

// ElderlySubmission is the outcome of a registration. Provisional is true
// when the record was only stored locally and still awaits sync.
type ElderlySubmission struct {
	Record      *models.ElderlyRecord `json:"record"`
	Provisional bool                  `json:"provisional"`
}

// RegistrationService registers elderly patients.
type RegistrationService struct {
	store   *db.Store
	api     remote.API
	monitor OnlineChecker
	codes   *codeGenerator
	logger  *zap.Logger
}

// NewRegistrationService creates a registration service. codePrefix is the
// leading token of generated external codes.
func NewRegistrationService(store *db.Store, api remote.API, monitor OnlineChecker, codePrefix string, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{
		store:   store,
		api:     api,
		monitor: monitor,
		codes:   newCodeGenerator(store.Elderly, codePrefix),
		logger:  logger,
	}
}

// Register creates a new patient record. An online remote failure
// propagates to the caller; it is never converted into an offline write.
func (s *RegistrationService) Register(ctx context.Context, input RegistrationInput) (*ElderlySubmission, error) {
	existing, err := s.store.Elderly.GetByNIK(input.NIK)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Newf(apperrors.ErrDuplicate, "nik %s already registered as %s", input.NIK, existing.Code)
	}

	code, err := s.codes.generate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := &models.ElderlyRecord{
		Code:             code,
		NIK:              input.NIK,
		FamilyCardNumber: input.FamilyCardNumber,
		Name:             input.Name,
		BirthDate:        input.BirthDate,
		Gender:           input.Gender,
		Address:          input.Address,
		CreatedAt:        now,
	}

	if s.monitor.Online() {
		created, err := s.api.CreateElderly(ctx, rec)
		if err != nil {
			return nil, err
		}
		created.CreatedAt = now
		created.SyncedAt = &now
		if _, err := s.store.Elderly.Create(created); err != nil {
			return nil, err
		}
		s.logger.Info("patient registered online",
			zap.String("code", created.Code), zap.Int64("id", created.ID))
		return &ElderlySubmission{Record: created, Provisional: false}, nil
	}

	rec.ID = localid.NewProvisional()
	if _, err := s.store.Elderly.Create(rec); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode queue payload", err)
	}
	if _, err := s.store.Queue.Enqueue(&models.SyncQueueEntry{
		EntityKind: models.EntityElderly,
		Operation:  models.OperationCreate,
		Payload:    payload,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("patient registered offline, queued for sync",
		zap.String("code", rec.Code), zap.Int64("provisional_id", rec.ID))
	return &ElderlySubmission{Record: rec, Provisional: true}, nil
}

// List returns all locally known patients, newest first.
func (s *RegistrationService) List() ([]*models.ElderlyRecord, error) {
	return s.store.Elderly.List()
}

// GetByCode returns the patient with the given external code, or a
// NOT_FOUND error.
func (s *RegistrationService) GetByCode(code string) (*models.ElderlyRecord, error) {
	rec, err := s.store.Elderly.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no patient with code %s", code)
	}
	return rec, nil
}
