// Package remote talks to the posyandu backend API. The backend is treated
// as an opaque HTTP collaborator: this package owns the wire format and the
// error taxonomy, nothing else.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/localid"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// API is the backend surface the rest of the program depends on.
type API interface {
	Health(ctx context.Context) error
	CreateElderly(ctx context.Context, rec *models.ElderlyRecord) (*models.ElderlyRecord, error)
	ListElderly(ctx context.Context) ([]*models.ElderlyRecord, error)
	CreateExamination(ctx context.Context, elderlyCode string, rec *models.ExaminationRecord) (*models.ExaminationRecord, error)
}

// Client is the resty-backed implementation of API.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

var _ API = (*Client)(nil)

// NewClient creates a backend client. Retries are left to the sync layer;
// the client itself makes exactly one attempt per call.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Health probes the backend health endpoint. A nil return means the backend
// is reachable and answering.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/health")
	if err != nil {
		return wireError("health probe", nil, err)
	}
	if resp.IsError() {
		return wireError("health probe", resp, nil)
	}
	return nil
}

// CreateElderly registers an elderly patient on the backend and returns the
// authoritative record, server id included.
func (c *Client) CreateElderly(ctx context.Context, rec *models.ElderlyRecord) (*models.ElderlyRecord, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", localid.NewRequestID()).
		SetBody(elderlyToWire(rec)).
		Post("/lansia")
	if err != nil {
		return nil, wireError("create elderly", nil, err)
	}
	envelope := decodeEnvelope(resp)
	if resp.IsError() || !envelope.Success {
		c.logger.Warn("backend rejected elderly record",
			zap.String("code", rec.Code),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", envelope.Message))
		return nil, wireError("create elderly", resp, nil)
	}

	var wire elderlyWire
	if err := json.Unmarshal(envelope.Data, &wire); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServer, "failed to decode elderly response", err)
	}
	created, err := wire.toDomain()
	if err != nil {
		return nil, err
	}
	c.logger.Info("elderly record created on backend",
		zap.String("code", created.Code),
		zap.Int64("server_id", created.ID))
	return created, nil
}

// ListElderly pulls the full elderly collection from the backend.
func (c *Client) ListElderly(ctx context.Context) ([]*models.ElderlyRecord, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/lansia")
	if err != nil {
		return nil, wireError("list elderly", nil, err)
	}
	envelope := decodeEnvelope(resp)
	if resp.IsError() || !envelope.Success {
		return nil, wireError("list elderly", resp, nil)
	}

	var wires []elderlyWire
	if err := json.Unmarshal(envelope.Data, &wires); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServer, "failed to decode elderly list", err)
	}
	records := make([]*models.ElderlyRecord, 0, len(wires))
	for _, w := range wires {
		rec, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CreateExamination records a health check for the patient addressed by
// external code and returns the authoritative record.
func (c *Client) CreateExamination(ctx context.Context, elderlyCode string, rec *models.ExaminationRecord) (*models.ExaminationRecord, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", localid.NewRequestID()).
		SetBody(examinationToWire(elderlyCode, rec)).
		Post(fmt.Sprintf("/lansia/%s/pemeriksaan", elderlyCode))
	if err != nil {
		return nil, wireError("create examination", nil, err)
	}
	envelope := decodeEnvelope(resp)
	if resp.IsError() || !envelope.Success {
		c.logger.Warn("backend rejected examination",
			zap.String("elderly_code", elderlyCode),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", envelope.Message))
		return nil, wireError("create examination", resp, nil)
	}

	var wire examinationWire
	if err := json.Unmarshal(envelope.Data, &wire); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServer, "failed to decode examination response", err)
	}
	created, err := wire.toDomain(rec.ElderlyID)
	if err != nil {
		return nil, err
	}
	c.logger.Info("examination created on backend",
		zap.String("elderly_code", elderlyCode),
		zap.Int64("server_id", created.ID))
	return created, nil
}

// wireError maps a transport failure or error response onto the shared
// error taxonomy. Exactly one of resp and err is meaningful.
func wireError(op string, resp *resty.Response, err error) error {
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return apperrors.Wrap(apperrors.ErrTimeout, op+" timed out", err)
		}
		return apperrors.Wrap(apperrors.ErrNetwork, op+" failed", err)
	}

	status := resp.StatusCode()
	message := op + ": " + resp.Status()
	if body := serverMessage(resp); body != "" {
		message = op + ": " + body
	}
	switch {
	case status >= 500:
		return apperrors.New(apperrors.ErrServer, message)
	case status == 404:
		return apperrors.New(apperrors.ErrNotFound, message)
	case status == 409:
		return apperrors.New(apperrors.ErrDuplicate, message)
	case status >= 400:
		return apperrors.New(apperrors.ErrValidation, message)
	default:
		return apperrors.New(apperrors.ErrServer, message)
	}
}

// decodeEnvelope reads the backend envelope from the raw body. Decoding is
// deliberately not routed through resty's content-type gated unmarshal: a
// backend that answers JSON without the matching Content-Type header still
// gets mapped onto the taxonomy instead of misread as an empty envelope.
func decodeEnvelope(resp *resty.Response) apiResponse {
	var envelope apiResponse
	_ = json.Unmarshal(resp.Body(), &envelope)
	return envelope
}

func serverMessage(resp *resty.Response) string {
	return decodeEnvelope(resp).Message
}
