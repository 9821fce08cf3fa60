package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/db"
	"github.com/vickyymosafan/posyandu-core/internal/localid"
	"github.com/vickyymosafan/posyandu-core/internal/logging"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

type fakeOnline struct{ online atomic.Bool }

func (f *fakeOnline) Online() bool { return f.online.Load() }

// fakeAPI is an in-memory stand-in for the backend.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int64
	elderly []*models.ElderlyRecord

	createErr error
	listErr   error
	listGate  chan struct{} // when non-nil, ListElderly blocks until closed

	createElderlyCalls int
	createExamCalls    int
}

func (f *fakeAPI) Health(ctx context.Context) error { return nil }

func (f *fakeAPI) CreateElderly(ctx context.Context, rec *models.ElderlyRecord) (*models.ElderlyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createElderlyCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	created := *rec
	created.ID = f.nextID
	created.SyncedAt = nil
	f.elderly = append(f.elderly, &created)
	out := created
	return &out, nil
}

func (f *fakeAPI) ListElderly(ctx context.Context) ([]*models.ElderlyRecord, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.ElderlyRecord, len(f.elderly))
	for i, rec := range f.elderly {
		clone := *rec
		out[i] = &clone
	}
	return out, nil
}

func (f *fakeAPI) CreateExamination(ctx context.Context, elderlyCode string, rec *models.ExaminationRecord) (*models.ExaminationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createExamCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	created := *rec
	created.ID = f.nextID
	return &created, nil
}

func setupManager(t *testing.T) (*Manager, *db.Store, *fakeAPI, *fakeOnline) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.NewMigrator(database.DB).Up())

	store := db.NewStore(database.DB, logging.NewNop())
	api := &fakeAPI{}
	online := &fakeOnline{}
	online.online.Store(true)
	return NewManager(store, api, online, logging.NewNop()), store, api, online
}

// enqueueOfflineElderly mimics the offline registration path: provisional
// local record plus a queue entry carrying it.
func enqueueOfflineElderly(t *testing.T, store *db.Store, code, nik string) *models.ElderlyRecord {
	t.Helper()
	rec := &models.ElderlyRecord{
		ID:               localid.NewProvisional(),
		Code:             code,
		NIK:              nik,
		FamilyCardNumber: "6543210987654321",
		Name:             "Siti Aminah",
		BirthDate:        time.Date(1952, time.March, 9, 0, 0, 0, 0, time.UTC),
		Gender:           models.GenderFemale,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	_, err := store.Elderly.Create(rec)
	require.NoError(t, err)

	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	_, err = store.Queue.Enqueue(&models.SyncQueueEntry{
		EntityKind: models.EntityElderly,
		Operation:  models.OperationCreate,
		Payload:    payload,
	})
	require.NoError(t, err)
	return rec
}

func enqueueOfflineExamination(t *testing.T, store *db.Store, elderly *models.ElderlyRecord) *models.ExaminationRecord {
	t.Helper()
	glucose := 110.0
	category := "Pre-diabetes"
	rec := &models.ExaminationRecord{
		ID:                     localid.NewProvisional(),
		ElderlyID:              elderly.ID,
		ExamDate:               time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		FastingGlucose:         &glucose,
		FastingGlucoseCategory: &category,
		CreatedAt:              time.Now().UTC().Truncate(time.Second),
	}
	_, err := store.Examinations.Create(rec)
	require.NoError(t, err)

	payload, err := json.Marshal(models.ExaminationPayload{ElderlyCode: elderly.Code, Record: *rec})
	require.NoError(t, err)
	_, err = store.Queue.Enqueue(&models.SyncQueueEntry{
		EntityKind: models.EntityExamination,
		Operation:  models.OperationCreate,
		Payload:    payload,
	})
	require.NoError(t, err)
	return rec
}

func TestSyncAllOfflineIsNoOp(t *testing.T) {
	manager, store, api, online := setupManager(t)
	online.online.Store(false)
	enqueueOfflineElderly(t, store, "PSY20250812Ab", "1234567890123456")

	result := manager.SyncAll(context.Background())
	assert.True(t, result.Skipped)
	assert.Zero(t, api.createElderlyCalls)

	n, err := store.Queue.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "queue untouched while offline")
	assert.Equal(t, StatusIdle, manager.Status())
}

func TestSyncAllDrainsAndReconciles(t *testing.T) {
	manager, store, api, _ := setupManager(t)
	elderly := enqueueOfflineElderly(t, store, "PSY20250812Ab", "1234567890123456")
	exam := enqueueOfflineExamination(t, store, elderly)

	result := manager.SyncAll(context.Background())
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.Drained)
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.Dropped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, api.createElderlyCalls, "one replay per queue entry")
	assert.Equal(t, 1, api.createExamCalls)

	n, err := store.Queue.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "queue drained")

	// The provisional elderly row was replaced by the server copy.
	local, err := store.Elderly.GetByCode(elderly.Code)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Positive(t, local.ID)
	assert.NotNil(t, local.SyncedAt)

	// The examination followed the id swap.
	exams, err := store.Examinations.ListByElderly(local.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Positive(t, exams[0].ID)
	assert.NotNil(t, exams[0].SyncedAt)
	assert.Equal(t, exam.ExamDate, exams[0].ExamDate)

	// Nothing left under the provisional ids.
	gone, err := store.Elderly.GetByID(elderly.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NotNil(t, manager.LastSync())
	require.NotNil(t, manager.LastResult())
}

func TestRetryCeilingDropsEntryOnFourthFailure(t *testing.T) {
	manager, store, api, _ := setupManager(t)
	enqueueOfflineElderly(t, store, "PSY20250812Ab", "1234567890123456")
	api.createErr = apperrors.New(apperrors.ErrServer, "boom")

	for attempt := 1; attempt <= 3; attempt++ {
		result := manager.SyncAll(context.Background())
		assert.Equal(t, 1, result.Failed, "attempt %d keeps the entry", attempt)
		assert.Zero(t, result.Dropped)

		pending, err := store.Queue.Pending()
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, attempt, pending[0].RetryCount)
	}

	result := manager.SyncAll(context.Background())
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Dropped, "fourth failure exceeds the ceiling")

	n, err := store.Queue.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, api.createElderlyCalls)
}

func TestConcurrentSyncIsSkipped(t *testing.T) {
	manager, _, api, _ := setupManager(t)
	api.listGate = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.SyncAll(context.Background()) // blocks in refresh
	}()

	require.Eventually(t, func() bool {
		return manager.Status() == StatusSyncing
	}, time.Second, time.Millisecond)

	second := manager.SyncAll(context.Background())
	assert.True(t, second.Skipped)

	close(api.listGate)
	wg.Wait()
	assert.Equal(t, StatusIdle, manager.Status())
}

func TestDuplicateOnReplayCountsAsApplied(t *testing.T) {
	manager, store, api, _ := setupManager(t)
	elderly := enqueueOfflineElderly(t, store, "PSY20250812Ab", "1234567890123456")

	// Server already holds the record from a replay whose response was lost.
	serverCopy := *elderly
	serverCopy.ID = 42
	serverCopy.SyncedAt = nil
	api.elderly = append(api.elderly, &serverCopy)
	api.createErr = apperrors.New(apperrors.ErrDuplicate, "code already registered")

	result := manager.SyncAll(context.Background())
	assert.Equal(t, 1, result.Drained)
	assert.Zero(t, result.Failed)

	n, err := store.Queue.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	// Refresh pulled the authoritative copy in.
	local, err := store.Elderly.GetByCode(elderly.Code)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Equal(t, int64(42), local.ID)
	assert.NotNil(t, local.SyncedAt)
}

func TestRefreshFailureIsSwallowed(t *testing.T) {
	manager, store, api, _ := setupManager(t)
	elderly := enqueueOfflineElderly(t, store, "PSY20250812Ab", "1234567890123456")
	api.listErr = apperrors.New(apperrors.ErrServer, "boom")

	result := manager.SyncAll(context.Background())
	assert.Equal(t, 1, result.Drained, "drain succeeded despite refresh failure")
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, StatusFailed, manager.Status())

	// The drained record is still reconciled locally.
	local, err := store.Elderly.GetByCode(elderly.Code)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.NotNil(t, local.SyncedAt)
}
