package writer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Kind is an export file type.
type Kind string

const (
	KindCSV   Kind = "csv"
	KindExcel Kind = "excel"
)

// ErrUnknownKind is returned for an export type other than csv or excel.
var ErrUnknownKind = fmt.Errorf("unknown export type (want %q or %q)", KindCSV, KindExcel)

// ParseKind accepts "csv", "excel" and "xlsx", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return KindCSV, nil
	case "excel", "xlsx":
		return KindExcel, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Extension returns the file extension for the kind, with the dot.
func (k Kind) Extension() string {
	if k == KindExcel {
		return ".xlsx"
	}
	return ".csv"
}

// ContentType returns the MIME type for the kind.
func (k Kind) ContentType() string {
	if k == KindExcel {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Writer writes a processing result in one export format.
type Writer interface {
	Write(out io.Writer, result *models.ProcessingResult) error
}

// New returns the writer for kind.
func New(kind Kind, includeSummary bool) (Writer, error) {
	switch kind {
	case KindCSV:
		return &CSVWriter{IncludeSummary: includeSummary}, nil
	case KindExcel:
		return &ExcelWriter{IncludeSummary: includeSummary}, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
}

// Export renders result into memory.
func Export(kind Kind, result *models.ProcessingResult, includeSummary bool) ([]byte, error) {
	w, err := New(kind, includeSummary)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := w.Write(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
