package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
)

func newResult(total string) *models.ProcessingResult {
	return &models.ProcessingResult{
		FormatType:  models.FormatLedger,
		TotalAmount: decimal.RequireFromString(total),
		Totals:      map[string]decimal.Decimal{},
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	created, err := store.Create(Document{Filename: "jan.pdf", Data: []byte("doc")})
	require.NoError(t, err)
	assert.Equal(t, StateCreated, created.State)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Size)

	_, err = store.Result(created.ID)
	assert.ErrorIs(t, err, models.ErrNotProcessed)

	begun, doc, err := store.Begin(created.ID)
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, begun.State)
	assert.Equal(t, []byte("doc"), doc)

	require.NoError(t, store.SetPhase(created.ID, models.PhaseExtract))
	snap, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseExtract, snap.Phase)

	result := newResult("10.00")
	done, err := store.Put(created.ID, result)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, done.State)
	assert.Equal(t, models.PhaseDone, done.Phase)

	got, err := store.Result(created.ID)
	require.NoError(t, err)
	assert.Same(t, result, got)

	// terminal sessions are handed back unchanged and without the document
	again, doc, err := store.Begin(created.ID)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, StateCompleted, again.State)
	assert.Same(t, result, again.Result)
}

func TestMemoryStore_ResultIsWriteOnce(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	s, _ := store.Create(Document{Filename: "a.txt"})
	_, _, _ = store.Begin(s.ID)

	first := newResult("1")
	_, err := store.Put(s.ID, first)
	require.NoError(t, err)

	_, err = store.Put(s.ID, newResult("2"))
	assert.Error(t, err)
	_, err = store.Fail(s.ID, errors.New("late failure"))
	assert.Error(t, err)

	got, err := store.Result(s.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestMemoryStore_PutRequiresProcessing(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	s, _ := store.Create(Document{Filename: "a.txt"})

	_, err := store.Put(s.ID, newResult("1"))
	assert.Error(t, err)
	assert.Error(t, store.SetPhase(s.ID, models.PhaseRead))
}

func TestMemoryStore_Fail(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	s, _ := store.Create(Document{Filename: "a.txt"})
	_, _, _ = store.Begin(s.ID)

	failed, err := store.Fail(s.ID, models.ErrUnsupportedFormat)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.ErrorIs(t, failed.Err, models.ErrUnsupportedFormat)

	_, err = store.Result(s.ID)
	assert.ErrorIs(t, err, models.ErrNotProcessed)
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, _, err = store.Begin("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = store.Put("missing", newResult("1"))
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	s, _ := store.Create(Document{Filename: "a.txt"})
	store.Evict(s.ID)
	_, err = store.Get(s.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestMemoryStore_BeginAtMostOnce(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	s, _ := store.Create(Document{Filename: "a.txt", Data: []byte("x")})

	var admitted, busy int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, doc, err := store.Begin(s.ID)
			switch {
			case err == nil && doc != nil:
				atomic.AddInt32(&admitted, 1)
			case errors.Is(err, models.ErrSessionBusy):
				atomic.AddInt32(&busy, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted)
	assert.Equal(t, int32(49), busy)
}

func TestMemoryStore_IndependentSessions(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		s, err := store.Create(Document{Filename: "doc"})
		require.NoError(t, err)
		ids[i] = s.ID
	}

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, _, err := store.Begin(id)
			assert.NoError(t, err)
			_, err = store.Put(id, newResult(decimal.NewFromInt(int64(i)).String()))
			assert.NoError(t, err)
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		r, err := store.Result(id)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(int64(i)).Equal(r.TotalAmount), "session %d got %s", i, r.TotalAmount)
	}
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	_, _ = store.Create(Document{Filename: "old"})
	_, _ = store.Create(Document{Filename: "old"})

	time.Sleep(50 * time.Millisecond)
	fresh, _ := store.Create(Document{Filename: "new"})

	assert.Equal(t, 2, store.Sweep())
	assert.Equal(t, 1, store.Len())
	_, err := store.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_ReadRefreshesTTL(t *testing.T) {
	store := NewMemoryStore(80 * time.Millisecond)
	s, _ := store.Create(Document{Filename: "a"})

	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		_, err := store.Get(s.ID)
		require.NoError(t, err, "read %d", i)
	}
}

func TestSweeper_RunOnce(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	_, _ = store.Create(Document{Filename: "a"})
	time.Sleep(30 * time.Millisecond)

	sw, err := NewSweeper(store, time.Minute, logger.NewNop())
	require.NoError(t, err)
	sw.Start()
	defer sw.Stop()

	sw.RunOnce()
	assert.Equal(t, 0, store.Len())
}
