package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormatType identifies which known statement layout a document matches.
type FormatType string

const (
	FormatRBC      FormatType = "rbc"
	FormatOriginal FormatType = "original"
	FormatLedger   FormatType = "ledger"
	FormatUnknown  FormatType = "unknown"
)

// Formats lists the supported layouts in detection priority order.
var Formats = []FormatType{FormatRBC, FormatOriginal, FormatLedger}

// Uncategorized is the label assigned when no category rule matches.
const Uncategorized = "Uncategorized"

// RawRow is an unvalidated transaction row exactly as found in the document.
type RawRow struct {
	Date           string
	PostingDate    string
	Description    string
	Amount         string
	Indicator      string // DR/CR column for layouts that carry one
	Balance        string
	Currency       string
	OriginalAmount string
	ExchangeRate   string
	Cardmember     string
	Country        string
	Notes          string
	Page           int
	Line           int
}

// Transaction is a canonical, validated statement transaction.
// Amounts are signed: credits positive, debits negative.
type Transaction struct {
	Date            Date            `json:"date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Currency        string          `json:"currency"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	PostingDate     *Date           `json:"posting_date,omitempty"`
	Cardmember      string          `json:"cardmember,omitempty"`
	MerchantCountry string          `json:"merchant_country,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	FormatType      FormatType      `json:"format_type"`
}

// DateRange holds the earliest and latest transaction dates.
type DateRange struct {
	Min Date `json:"min_date"`
	Max Date `json:"max_date"`
}

// SkippedRow records a line or row that was excluded, with its location and reason.
type SkippedRow struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason"`
}

// ProcessingResult is the immutable outcome of processing one document.
type ProcessingResult struct {
	SessionID        string                     `json:"session_id,omitempty"`
	FormatType       FormatType                 `json:"format_type"`
	TotalAmount      decimal.Decimal            `json:"total_amount"`
	TransactionCount int                        `json:"transaction_count"`
	Totals           map[string]decimal.Decimal `json:"totals"`
	DateRange        *DateRange                 `json:"date_range"`
	Transactions     []Transaction              `json:"transactions"`
	Warnings         []SkippedRow               `json:"warnings"`
	ProcessedAt      time.Time                  `json:"processed_at"`
}
