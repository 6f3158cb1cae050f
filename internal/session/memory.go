package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/insightdelivered/spendsense/internal/models"
)

type entry struct {
	session  Session
	document []byte
}

// MemoryStore keeps sessions in a go-cache with an idle TTL. Every read
// or write refreshes the TTL. Expired entries are dropped by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl of
// inactivity. The cache janitor is disabled; call Sweep (see Sweeper).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, 0),
		now:   time.Now,
	}
}

// lookup returns the live entry and touches it. Callers hold s.mu.
func (s *MemoryStore) lookup(id string) (*entry, error) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	e := x.(*entry)
	s.cache.Set(id, e, cache.DefaultExpiration)
	return e, nil
}

func (s *MemoryStore) snapshot(e *entry) *Session {
	snap := e.session
	return &snap
}

func (s *MemoryStore) Create(doc Document) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &entry{
		session: Session{
			ID:        uuid.NewString(),
			Filename:  doc.Filename,
			Size:      len(doc.Data),
			State:     StateCreated,
			CreatedAt: now,
			UpdatedAt: now,
		},
		document: doc.Data,
	}
	if err := s.cache.Add(e.session.ID, e, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.snapshot(e), nil
}

func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(e), nil
}

func (s *MemoryStore) Begin(id string) (*Session, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	switch e.session.State {
	case StateProcessing:
		return s.snapshot(e), nil, fmt.Errorf("session %s: %w", id, models.ErrSessionBusy)
	case StateCompleted, StateFailed:
		return s.snapshot(e), nil, nil
	}

	e.session.State = StateProcessing
	e.session.Phase = models.PhaseNone
	e.session.UpdatedAt = s.now()
	return s.snapshot(e), e.document, nil
}

func (s *MemoryStore) SetPhase(id string, phase models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if e.session.State != StateProcessing {
		return fmt.Errorf("session %s is %s, not processing", id, e.session.State)
	}
	e.session.Phase = phase
	e.session.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Put(id string, result *models.ProcessingResult) (*Session, error) {
	if result == nil {
		return nil, fmt.Errorf("session %s: nil result", id)
	}
	return s.finish(id, func(e *entry) {
		e.session.State = StateCompleted
		e.session.Phase = models.PhaseDone
		e.session.Result = result
	})
}

func (s *MemoryStore) Fail(id string, err error) (*Session, error) {
	return s.finish(id, func(e *entry) {
		e.session.State = StateFailed
		e.session.Err = err
	})
}

// finish applies a terminal transition. Only a processing session can
// finish, so a stored result is never replaced.
func (s *MemoryStore) finish(id string, apply func(*entry)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.session.State != StateProcessing {
		return s.snapshot(e), fmt.Errorf("session %s is %s, not processing", id, e.session.State)
	}
	apply(e)
	e.session.UpdatedAt = s.now()
	e.document = nil
	return s.snapshot(e), nil
}

func (s *MemoryStore) Result(id string) (*models.ProcessingResult, error) {
	snap, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if snap.State != StateCompleted {
		return nil, fmt.Errorf("session %s is %s: %w", id, snap.State, models.ErrNotProcessed)
	}
	return snap.Result, nil
}

func (s *MemoryStore) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	return before - s.cache.ItemCount()
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
