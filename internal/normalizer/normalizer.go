package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/spendsense/internal/category"
	"github.com/insightdelivered/spendsense/internal/models"
)

// SignConvention says how a layout encodes debits and credits.
type SignConvention int

const (
	// SignLiteral amounts carry their own sign.
	SignLiteral SignConvention = iota
	// SignInverted amounts are positive for spending and negative for
	// payments, as on card statements.
	SignInverted
	// SignIndicator amounts are unsigned; a DR/CR column decides.
	SignIndicator
)

// Rules parametrize normalization for one layout.
type Rules struct {
	ParseDate        func(string) (models.Date, error)
	DecimalSeparator rune
	Sign             SignConvention
	Currency         string
}

var formatRules = map[models.FormatType]Rules{
	models.FormatRBC: {
		ParseDate:        layoutParser("Jan 02 2006"),
		DecimalSeparator: '.',
		Sign:             SignInverted,
		Currency:         "CAD",
	},
	models.FormatOriginal: {
		ParseDate:        parseDayFirst,
		DecimalSeparator: '.',
		Sign:             SignInverted,
		Currency:         "USD",
	},
	models.FormatLedger: {
		ParseDate:        layoutParser("02.01.2006"),
		DecimalSeparator: ',',
		Sign:             SignIndicator,
		Currency:         "EUR",
	},
}

// RulesFor returns the normalization rules registered for a layout.
func RulesFor(format models.FormatType) (Rules, bool) {
	r, ok := formatRules[format]
	return r, ok
}

var (
	debitIndicators  = map[string]bool{"DR": true, "S": true, "D": true}
	creditIndicators = map[string]bool{"CR": true, "H": true, "C": true}
)

// Normalizer turns raw rows of one layout into canonical transactions.
type Normalizer struct {
	format     models.FormatType
	rules      Rules
	classifier category.Classifier
}

// New returns a normalizer for the layout. A nil classifier uses the
// default category rules.
func New(format models.FormatType, classifier category.Classifier) (*Normalizer, error) {
	rules, ok := RulesFor(format)
	if !ok {
		return nil, fmt.Errorf("no normalization rules for format %q: %w", format, models.ErrUnsupportedFormat)
	}
	return NewWithRules(format, rules, classifier), nil
}

// NewWithRules returns a normalizer with explicit rules.
func NewWithRules(format models.FormatType, rules Rules, classifier category.Classifier) *Normalizer {
	if classifier == nil {
		classifier = category.NewDefault()
	}
	return &Normalizer{format: format, rules: rules, classifier: classifier}
}

// Normalize converts one row or returns a *models.NormalizationError.
func (n *Normalizer) Normalize(row models.RawRow) (models.Transaction, error) {
	fail := func(field, value, reason string) (models.Transaction, error) {
		return models.Transaction{}, &models.NormalizationError{
			Page: row.Page, Line: row.Line, Field: field, Value: value, Reason: reason,
		}
	}

	date, err := n.rules.ParseDate(row.Date)
	if err != nil {
		return fail("date", row.Date, err.Error())
	}

	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return fail("description", row.Description, "empty")
	}

	amount, err := ParseAmount(row.Amount, n.rules.DecimalSeparator)
	if err != nil {
		return fail("amount", row.Amount, err.Error())
	}

	switch n.rules.Sign {
	case SignInverted:
		amount = amount.Neg()
	case SignIndicator:
		ind := strings.ToUpper(strings.TrimSpace(row.Indicator))
		switch {
		case debitIndicators[ind]:
			amount = amount.Abs().Neg()
		case creditIndicators[ind]:
			amount = amount.Abs()
		case ind == "":
			return fail("indicator", row.Indicator, "missing debit/credit indicator")
		default:
			return fail("indicator", row.Indicator, "unknown debit/credit indicator")
		}
	}

	txn := models.Transaction{
		Date:            date,
		Description:     desc,
		Amount:          amount,
		Category:        n.classifier.Classify(desc),
		Currency:        n.rules.Currency,
		OriginalAmount:  amount,
		ExchangeRate:    decimal.NewFromInt(1),
		Cardmember:      row.Cardmember,
		MerchantCountry: row.Country,
		Notes:           row.Notes,
		FormatType:      n.format,
	}
	if txn.Category == "" {
		txn.Category = models.Uncategorized
	}

	if row.PostingDate != "" {
		posted, err := n.rules.ParseDate(row.PostingDate)
		if err != nil {
			return fail("posting date", row.PostingDate, err.Error())
		}
		txn.PostingDate = &posted
	}

	if row.Currency != "" {
		orig, err := ParseAmount(row.OriginalAmount, '.')
		if err != nil {
			return fail("original amount", row.OriginalAmount, err.Error())
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(row.ExchangeRate))
		if err != nil || !rate.IsPositive() {
			return fail("exchange rate", row.ExchangeRate, "not a positive number")
		}
		if amount.IsNegative() {
			orig = orig.Abs().Neg()
		} else {
			orig = orig.Abs()
		}
		txn.Currency = row.Currency
		txn.OriginalAmount = orig
		txn.ExchangeRate = rate
	}

	return txn, nil
}

// NormalizeAll converts rows in order. Rows that fail are left out and
// returned as skipped rows; they never fail the batch.
func (n *Normalizer) NormalizeAll(rows []models.RawRow) ([]models.Transaction, []models.SkippedRow) {
	txns := make([]models.Transaction, 0, len(rows))
	var skipped []models.SkippedRow

	for _, row := range rows {
		txn, err := n.Normalize(row)
		if err != nil {
			var nerr *models.NormalizationError
			if errors.As(err, &nerr) {
				skipped = append(skipped, nerr.Skipped(rowText(row)))
				continue
			}
			skipped = append(skipped, models.SkippedRow{Page: row.Page, Line: row.Line, Text: rowText(row), Reason: err.Error()})
			continue
		}
		txns = append(txns, txn)
	}
	return txns, skipped
}

func rowText(row models.RawRow) string {
	parts := []string{row.Date, row.Description, row.Amount, row.Indicator}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
