// Package service implements the statement use cases behind the HTTP
// handlers: upload, process, status and export.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/spendsense/internal/extractor"
	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
	"github.com/insightdelivered/spendsense/internal/pipeline"
	"github.com/insightdelivered/spendsense/internal/session"
	"github.com/insightdelivered/spendsense/internal/writer"
)

const module = "statement"

// Processor runs the processing pipeline over one document.
type Processor interface {
	Process(ctx context.Context, doc []byte, observe pipeline.Observer) (*models.ProcessingResult, error)
}

// ErrUnsupportedFile is returned for uploads that are not .pdf or .txt.
var ErrUnsupportedFile = errors.New("only .pdf and .txt statements are supported")

var allowedExtensions = map[string]bool{".pdf": true, ".txt": true}

// StatementService coordinates the session store and the pipeline.
type StatementService struct {
	store     session.Store
	processor Processor
	log       logger.Logger
	maxBytes  int64
}

func NewStatementService(store session.Store, processor Processor, log logger.Logger, maxBytes int64) *StatementService {
	return &StatementService{store: store, processor: processor, log: log, maxBytes: maxBytes}
}

// Upload stores a document in a new session.
func (s *StatementService) Upload(filename string, data []byte) (*session.Session, error) {
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFile)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", filename, len(data), models.ErrDocumentTooLarge)
	}

	sess, err := s.store.Create(session.Document{Filename: filename, Data: data})
	if err != nil {
		return nil, s.internal("create session failed", err, nil)
	}
	s.log.Info(module, "document uploaded", map[string]interface{}{
		"session_id": sess.ID,
		"filename":   filename,
		"bytes":      len(data),
	})
	return sess, nil
}

// Process runs the pipeline for a session at most once. A completed
// session returns its stored result; a failed one returns its stored error;
// a session already processing yields models.ErrSessionBusy.
//
// The run is detached from ctx cancellation: a client that goes away does
// not abort it. The pipeline timeout still applies.
func (s *StatementService) Process(ctx context.Context, id string) (*models.ProcessingResult, error) {
	sess, doc, err := s.store.Begin(id)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case session.StateCompleted:
		return sess.Result, nil
	case session.StateFailed:
		return nil, sess.Err
	}

	observe := func(phase models.Phase) {
		_ = s.store.SetPhase(id, phase)
	}
	result, err := s.processor.Process(context.WithoutCancel(ctx), doc, observe)
	if err != nil {
		err = s.classify(id, err)
		if _, ferr := s.store.Fail(id, err); ferr != nil {
			s.log.Warn(module, "could not record failure", map[string]interface{}{"session_id": id, "error": ferr.Error()})
		}
		return nil, err
	}

	result.SessionID = id
	done, err := s.store.Put(id, result)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, err
		}
		return nil, s.internal("storing result failed", err, map[string]interface{}{"session_id": id})
	}
	return done.Result, nil
}

// Status returns a snapshot of the session.
func (s *StatementService) Status(id string) (*session.Session, error) {
	return s.store.Get(id)
}

// Result returns the stored result of a completed session.
func (s *StatementService) Result(id string) (*models.ProcessingResult, error) {
	return s.store.Result(id)
}

// Discard drops a session and its document.
func (s *StatementService) Discard(id string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}
	s.store.Evict(id)
	s.log.Info(module, "session discarded", map[string]interface{}{"session_id": id})
	return nil
}

// Export renders the stored result of a completed session.
func (s *StatementService) Export(id string, kind writer.Kind, includeSummary bool) ([]byte, string, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, "", err
	}
	if sess.State != session.StateCompleted {
		return nil, "", fmt.Errorf("session %s is %s: %w", id, sess.State, models.ErrNotProcessed)
	}

	data, err := writer.Export(kind, sess.Result, includeSummary)
	if err != nil {
		if errors.Is(err, writer.ErrUnknownKind) {
			return nil, "", err
		}
		return nil, "", s.internal("export failed", err, map[string]interface{}{"session_id": id, "kind": string(kind)})
	}

	base := strings.TrimSuffix(sess.Filename, filepath.Ext(sess.Filename))
	if base == "" {
		base = "statement"
	}
	return data, base + "_transactions" + kind.Extension(), nil
}

// classify keeps user-facing document errors and hides everything else
// behind models.ErrInternal after logging it.
func (s *StatementService) classify(id string, err error) error {
	for _, known := range []error{
		models.ErrUnsupportedFormat,
		models.ErrExtraction,
		models.ErrProcessingTimeout,
		models.ErrDocumentTooLarge,
		models.ErrInternal,
		extractor.ErrUnreadable,
	} {
		if errors.Is(err, known) {
			s.log.Warn(module, "processing failed", map[string]interface{}{"session_id": id, "error": err.Error()})
			return err
		}
	}
	return s.internal("processing failed", err, map[string]interface{}{"session_id": id})
}

func (s *StatementService) internal(msg string, err error, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["error"] = err
	s.log.Error(module, msg, details)
	return models.ErrInternal
}
