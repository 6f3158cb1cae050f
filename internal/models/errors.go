package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means no known layout signature matched the document.
	ErrUnsupportedFormat = errors.New("format not recognized")
	// ErrExtraction means no valid transaction row could be located at all.
	ErrExtraction = errors.New("no transactions could be extracted from the document")
	// ErrSessionNotFound means the session id is unknown or has been evicted.
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrSessionBusy means a pipeline is already running for the session.
	ErrSessionBusy = errors.New("session is already being processed")
	// ErrNotProcessed means the session exists but holds no result yet.
	ErrNotProcessed = errors.New("session has not been processed")

	ErrDocumentTooLarge  = errors.New("document exceeds the maximum upload size")
	ErrProcessingTimeout = errors.New("processing exceeded the time limit")

	// ErrInternal is the only detail surfaced to callers for unexpected failures.
	ErrInternal = errors.New("internal error")
)

// ExtractionError is a whole-document failure raised by a layout extractor.
type ExtractionError struct {
	Format  FormatType
	Skipped int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s layout: %v (%d lines skipped)", e.Format, ErrExtraction, e.Skipped)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// NormalizationError rejects a single raw row; it never fails the document.
type NormalizationError struct {
	Page   int
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("page %d, line %d: invalid %s %q: %s", e.Page, e.Line, e.Field, e.Value, e.Reason)
}

// Skipped converts the error into the diagnostic kept on the result.
func (e *NormalizationError) Skipped(text string) SkippedRow {
	return SkippedRow{
		Page:   e.Page,
		Line:   e.Line,
		Text:   text,
		Reason: fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason),
	}
}
