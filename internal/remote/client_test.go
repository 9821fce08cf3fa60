package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/logging"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 2*time.Second, logging.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, envelope apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func TestCreateElderlyReturnsAuthoritativeRecord(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/lansia", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body elderlyWire
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1952-03-09", body.BirthDate)
		assert.Zero(t, body.ID, "provisional ids never go over the wire")

		body.ID = 42
		data, _ := json.Marshal(body)
		writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: data})
	}))

	created, err := client.CreateElderly(context.Background(), &models.ElderlyRecord{
		ID:        -1723400000123001,
		Code:      "PSY20250812Ab",
		NIK:       "1234567890123456",
		Name:      "Siti Aminah",
		BirthDate: time.Date(1952, time.March, 9, 0, 0, 0, 0, time.UTC),
		Gender:    models.GenderFemale,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, "PSY20250812Ab", created.Code)
	assert.Equal(t, time.Date(1952, time.March, 9, 0, 0, 0, 0, time.UTC), created.BirthDate)
}

func TestListElderly(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lansia", r.URL.Path)
		data, _ := json.Marshal([]elderlyWire{
			{ID: 1, Code: "PSY20250812Ab", NIK: "1234567890123456", Name: "A", BirthDate: "1950-01-01", Gender: "female"},
			{ID: 2, Code: "PSY20250812Cd", NIK: "6543210987654321", Name: "B", BirthDate: "1948-06-15", Gender: "male"},
		})
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
	}))

	records, err := client.ListElderly(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, models.GenderMale, records[1].Gender)
}

func TestCreateExaminationAddressesByCode(t *testing.T) {
	sys, dia := 185, 100
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lansia/PSY20250812Ab/pemeriksaan", r.URL.Path)
		var body examinationWire
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PSY20250812Ab", body.ElderlyCode)
		require.NotNil(t, body.Systolic)
		assert.Equal(t, 185, *body.Systolic)

		body.ID = 7
		data, _ := json.Marshal(body)
		writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: data})
	}))

	created, err := client.CreateExamination(context.Background(), "PSY20250812Ab", &models.ExaminationRecord{
		ElderlyID: 42,
		ExamDate:  time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		Systolic:  &sys,
		Diastolic: &dia,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, int64(42), created.ElderlyID, "local linkage is preserved")
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "database unavailable"})
		}))
		_, err := client.ListElderly(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrServer))
		assert.Contains(t, err.Error(), "database unavailable")
	})

	t.Run("duplicate", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusConflict, apiResponse{Success: false, Message: "nik already registered"})
		}))
		_, err := client.CreateElderly(context.Background(), &models.ElderlyRecord{Code: "x"})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrDuplicate))
	})

	t.Run("validation", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "nik must be 16 digits"})
		}))
		_, err := client.CreateElderly(context.Background(), &models.ElderlyRecord{Code: "x"})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("unreachable host", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, logging.NewNop())
		err := client.Health(context.Background())
		require.Error(t, err)
		code := apperrors.CodeOf(err)
		assert.True(t, code == apperrors.ErrNetwork || code == apperrors.ErrTimeout, "got %s", code)
	})
}

// The envelope must be readable even when the backend forgets the JSON
// content type, on the success path and the error path alike.
func TestEnvelopeDecodedWithoutContentType(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := json.Marshal([]elderlyWire{
				{ID: 1, Code: "PSY20250812Ab", NIK: "1234567890123456", Name: "A", BirthDate: "1950-01-01", Gender: "female"},
			})
			_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
		}))

		records, err := client.ListElderly(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0].ID)
	})

	t.Run("error message surfaced", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Message: "database unavailable"})
		}))

		_, err := client.ListElderly(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrServer))
		assert.Contains(t, err.Error(), "database unavailable")
	})
}

func TestHealth(t *testing.T) {
	var hits int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, 1, hits)
}
