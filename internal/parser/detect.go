package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/insightdelivered/spendsense/internal/models"
)

// detectSampleSize bounds how much of the document the detector looks at.
const detectSampleSize = 5000

// minSignatureHits is the number of distinct signatures a layout needs.
const minSignatureHits = 2

const monthAlternation = `(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)`

type signature struct {
	format   models.FormatType
	patterns []*regexp.Regexp
}

// signatures are evaluated in priority order.
var signatures = []signature{
	{
		format: models.FormatRBC,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^` + monthAlternation + ` \d{2} ` + monthAlternation + ` \d{2} `),
			regexp.MustCompile(`(?i)Foreign Currency`),
			regexp.MustCompile(`(?i)TOTAL ACCOUNT BALANCE`),
			regexp.MustCompile(`(?i)Exchange rate\s*-\s*[\d.]+`),
			regexp.MustCompile(`(?i)\bNEW BALANCE\b`),
		},
	},
	{
		format: models.FormatOriginal,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)card\s?member`),
			regexp.MustCompile(`(?im)^\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+\d{4}\s`),
			regexp.MustCompile(`(?m)\sFS$`),
			regexp.MustCompile(`(?i)flexible spending`),
		},
	},
	{
		format: models.FormatLedger,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\d{2}\.\d{2}\.\d{4}\s`),
			regexp.MustCompile(`(?m)\s(?:DR|CR)(?:\s|$)`),
			regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}\b`),
			regexp.MustCompile(`(?i)\b(?:debit|soll)\b.*\b(?:credit|haben)\b`),
		},
	},
}

// Detector classifies a document as one of the known layouts.
// It holds no state between calls.
type Detector struct {
	hints []string
}

// NewDetector builds a detector. Cardmember hints count as an extra
// signature of the cardmember layout.
func NewDetector(opts Options) *Detector {
	return &Detector{hints: opts.CardmemberHints}
}

// Detect returns the highest-priority layout with enough signature hits.
func (d *Detector) Detect(pages []string) (models.FormatType, error) {
	sample := strings.Join(pages, "\n")
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	for _, sig := range signatures {
		hits := 0
		for _, re := range sig.patterns {
			if re.MatchString(sample) {
				hits++
			}
		}
		if sig.format == models.FormatOriginal && containsAny(sample, d.hints) {
			hits++
		}
		if hits >= minSignatureHits {
			return sig.format, nil
		}
	}

	return models.FormatUnknown, fmt.Errorf("statement layout could not be identified: %w", models.ErrUnsupportedFormat)
}

// Detect classifies pages with default options.
func Detect(pages []string) (models.FormatType, error) {
	return NewDetector(Options{}).Detect(pages)
}
