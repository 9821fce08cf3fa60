// Package httpapi exposes the record-keeping operations over HTTP for the
// posyandu desk application.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
	"github.com/vickyymosafan/posyandu-core/internal/service"
	"github.com/vickyymosafan/posyandu-core/internal/syncer"
)

const dateLayout = "2006-01-02"

// Handler wires the services to echo routes.
type Handler struct {
	registration *service.RegistrationService
	examination  *service.ExaminationService
	manager      *syncer.Manager
	monitor      service.OnlineChecker
	queueCount   func() (int, error)
	logger       *zap.Logger
}

// New creates the HTTP handler. queueCount reports pending sync entries for
// the status endpoint.
func New(registration *service.RegistrationService, examination *service.ExaminationService,
	manager *syncer.Manager, monitor service.OnlineChecker, queueCount func() (int, error),
	logger *zap.Logger) *Handler {
	return &Handler{
		registration: registration,
		examination:  examination,
		manager:      manager,
		monitor:      monitor,
		queueCount:   queueCount,
		logger:       logger,
	}
}

// Register attaches all routes to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	api := e.Group("/api")
	api.POST("/elderly", h.RegisterElderly)
	api.GET("/elderly", h.ListElderly)
	api.GET("/elderly/:code", h.GetElderly)
	api.POST("/elderly/:code/examinations", h.SubmitExamination)
	api.GET("/elderly/:code/examinations", h.History)
	api.GET("/elderly/:code/trends", h.Trends)
	api.POST("/sync", h.TriggerSync)
	api.GET("/sync/status", h.SyncStatus)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps the shared error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c echo.Context, err error) error {
	code := apperrors.CodeOf(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	var status int
	switch code {
	case apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrDuplicate:
		status = http.StatusConflict
	case apperrors.ErrNetwork, apperrors.ErrTimeout, apperrors.ErrServer:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		h.logger.Error("request failed", zap.Error(err))
	}
	return c.JSON(status, errorResponse{Error: errorBody{Code: string(code), Message: message}})
}

type registerRequest struct {
	NIK              string `json:"nik"`
	FamilyCardNumber string `json:"family_card_number"`
	Name             string `json:"name"`
	BirthDate        string `json:"birth_date"`
	Gender           string `json:"gender"`
	Address          string `json:"address"`
}

// RegisterElderly handles POST /api/elderly. Online submissions answer 201
// with the authoritative record; offline ones answer 202 with the
// provisional record.
func (h *Handler) RegisterElderly(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, apperrors.Wrap(apperrors.ErrValidation, "malformed request body", err))
	}
	birthDate, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		return h.writeError(c, apperrors.Newf(apperrors.ErrValidation, "birth_date must be YYYY-MM-DD, got %q", req.BirthDate))
	}

	sub, err := h.registration.Register(c.Request().Context(), service.RegistrationInput{
		NIK:              req.NIK,
		FamilyCardNumber: req.FamilyCardNumber,
		Name:             req.Name,
		BirthDate:        birthDate,
		Gender:           models.Gender(req.Gender),
		Address:          req.Address,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	if sub.Provisional {
		return c.JSON(http.StatusAccepted, sub)
	}
	return c.JSON(http.StatusCreated, sub)
}

// ListElderly handles GET /api/elderly.
func (h *Handler) ListElderly(c echo.Context) error {
	records, err := h.registration.List()
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// GetElderly handles GET /api/elderly/:code.
func (h *Handler) GetElderly(c echo.Context) error {
	rec, err := h.registration.GetByCode(c.Param("code"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type examinationRequest struct {
	Type     string `json:"type"` // physical, lab or combined
	ExamDate string `json:"exam_date"`

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

// SubmitExamination handles POST /api/elderly/:code/examinations. The body
// names the examination type; measurements follow the same branch rules as
// the services.
func (h *Handler) SubmitExamination(c echo.Context) error {
	var req examinationRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, apperrors.Wrap(apperrors.ErrValidation, "malformed request body", err))
	}
	examDate, err := time.Parse(dateLayout, req.ExamDate)
	if err != nil {
		return h.writeError(c, apperrors.Newf(apperrors.ErrValidation, "exam_date must be YYYY-MM-DD, got %q", req.ExamDate))
	}

	input := service.ExaminationInput{
		ExamDate:  examDate,
		HeightCM:  req.HeightCM,
		WeightKG:  req.WeightKG,
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,

		FastingGlucose:      req.FastingGlucose,
		RandomGlucose:       req.RandomGlucose,
		PostprandialGlucose: req.PostprandialGlucose,
		TotalCholesterol:    req.TotalCholesterol,
		UricAcid:            req.UricAcid,
	}

	code := c.Param("code")
	ctx := c.Request().Context()
	var sub *service.ExaminationSubmission
	switch req.Type {
	case "physical":
		sub, err = h.examination.SubmitPhysical(ctx, code, input)
	case "lab":
		sub, err = h.examination.SubmitLab(ctx, code, input)
	case "combined":
		sub, err = h.examination.SubmitCombined(ctx, code, input)
	default:
		return h.writeError(c, apperrors.Newf(apperrors.ErrValidation, "type must be physical, lab or combined, got %q", req.Type))
	}
	if err != nil {
		return h.writeError(c, err)
	}
	if sub.Provisional {
		return c.JSON(http.StatusAccepted, sub)
	}
	return c.JSON(http.StatusCreated, sub)
}

// History handles GET /api/elderly/:code/examinations with optional
// inclusive from/to date bounds.
func (h *Handler) History(c echo.Context) error {
	var from, to *time.Time
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return h.writeError(c, apperrors.Newf(apperrors.ErrValidation, "from must be YYYY-MM-DD, got %q", raw))
		}
		from = &parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return h.writeError(c, apperrors.Newf(apperrors.ErrValidation, "to must be YYYY-MM-DD, got %q", raw))
		}
		to = &parsed
	}

	exams, err := h.examination.History(c.Param("code"), from, to)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, exams)
}

// Trends handles GET /api/elderly/:code/trends.
func (h *Handler) Trends(c echo.Context) error {
	trends, err := h.examination.Trends(c.Param("code"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, trends)
}

// TriggerSync handles POST /api/sync: one synchronous drain-and-refresh
// cycle.
func (h *Handler) TriggerSync(c echo.Context) error {
	result := h.manager.SyncAll(c.Request().Context())
	return c.JSON(http.StatusOK, result)
}

type syncStatusResponse struct {
	Status   syncer.Status  `json:"status"`
	Online   bool           `json:"online"`
	Pending  int            `json:"pending"`
	LastSync *time.Time     `json:"last_sync,omitempty"`
	Last     *syncer.Result `json:"last_result,omitempty"`
}

// SyncStatus handles GET /api/sync/status.
func (h *Handler) SyncStatus(c echo.Context) error {
	pending, err := h.queueCount()
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, syncStatusResponse{
		Status:   h.manager.Status(),
		Online:   h.monitor.Online(),
		Pending:  pending,
		LastSync: h.manager.LastSync(),
		Last:     h.manager.LastResult(),
	})
}

// Healthz handles GET /healthz. The process is healthy even while the
// backend is unreachable; connectivity is reported, not required.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"online": h.monitor.Online(),
	})
}
