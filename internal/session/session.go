// Package session binds uploaded documents to their processing results.
//
// Sessions live in memory only. They expire after an idle TTL and are all
// lost on restart; nothing is persisted.
package session

import (
	"time"

	"github.com/insightdelivered/spendsense/internal/models"
)

// State is a session lifecycle state.
type State string

const (
	StateCreated    State = "created"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Document is an uploaded statement.
type Document struct {
	Filename string
	Data     []byte
}

// Session is a point-in-time copy of a stored session.
type Session struct {
	ID        string
	Filename  string
	Size      int
	State     State
	Phase     models.Phase
	CreatedAt time.Time
	UpdatedAt time.Time
	// Err is set in StateFailed.
	Err error
	// Result is set in StateCompleted and never changes afterwards.
	Result *models.ProcessingResult
}

// Store is the session registry. Implementations serialise all state
// transitions; Begin admits at most one processing run per session.
type Store interface {
	// Create registers a document in StateCreated.
	Create(doc Document) (*Session, error)
	// Get returns a snapshot or models.ErrSessionNotFound.
	Get(id string) (*Session, error)
	// Begin moves a created session to processing and hands out its
	// document. A session already processing yields models.ErrSessionBusy.
	// A terminal session is returned unchanged with a nil document.
	Begin(id string) (*Session, []byte, error)
	// SetPhase records the running phase of a processing session.
	SetPhase(id string, phase models.Phase) error
	// Put stores the result and completes the session.
	Put(id string, result *models.ProcessingResult) (*Session, error)
	// Fail stores err and fails the session.
	Fail(id string, err error) (*Session, error)
	// Result returns the stored result or models.ErrNotProcessed.
	Result(id string) (*models.ProcessingResult, error)
	// Evict removes the session.
	Evict(id string)
	// Sweep drops idle sessions and returns how many were removed.
	Sweep() int
}
