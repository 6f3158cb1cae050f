package parser

import (
	"fmt"
	"time"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Extraction is the ordered output of a layout extractor.
type Extraction struct {
	Format  models.FormatType
	Rows    []models.RawRow
	Skipped []models.SkippedRow
}

// Extractor walks a document of one known layout and yields raw rows.
type Extractor interface {
	// Extract returns rows in document order. Rows that do not match the
	// layout are recorded in Skipped; a *models.ExtractionError is returned
	// only when no row at all could be located.
	Extract(pages []string) (*Extraction, error)
	// Format returns the layout tag this extractor handles.
	Format() models.FormatType
}

// Options tune the extractors and the detector.
type Options struct {
	// CardmemberHints are names that may trail descriptions in the
	// cardmember layout.
	CardmemberHints []string
	// Now supplies the fallback statement year. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

var registry = map[models.FormatType]func(Options) Extractor{
	models.FormatRBC:      func(o Options) Extractor { return &RBCExtractor{opts: o} },
	models.FormatOriginal: func(o Options) Extractor { return &CardmemberExtractor{opts: o} },
	models.FormatLedger:   func(o Options) Extractor { return &LedgerExtractor{} },
}

// New returns the extractor registered for the given format tag.
func New(format models.FormatType, opts Options) (Extractor, error) {
	build, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("no extractor for format %q: %w", format, models.ErrUnsupportedFormat)
	}
	return build(opts), nil
}

// ParseFormat validates a user-supplied format tag.
func ParseFormat(s string) (models.FormatType, error) {
	f := models.FormatType(s)
	if _, ok := registry[f]; !ok {
		return models.FormatUnknown, fmt.Errorf("unknown format %q (want rbc, original or ledger): %w", s, models.ErrUnsupportedFormat)
	}
	return f, nil
}

// finish turns an extraction without rows into the whole-document failure.
func finish(ex *Extraction) (*Extraction, error) {
	if len(ex.Rows) == 0 {
		return nil, &models.ExtractionError{Format: ex.Format, Skipped: len(ex.Skipped)}
	}
	return ex, nil
}

func (ex *Extraction) skip(l line, reason string) {
	ex.Skipped = append(ex.Skipped, models.SkippedRow{
		Page:   l.page,
		Line:   l.num,
		Text:   l.text,
		Reason: reason,
	})
}
