package parser

import (
	"strings"

	"github.com/insightdelivered/spendsense/internal/models"
)

// LedgerExtractor handles account ledgers with European number notation and
// an explicit debit/credit column:
//
//	Date       Description              Amount     Dr/Cr  Balance
//	05.01.2024 Grocery                  120,50     DR     1.379,50
//	10.01.2024 Salary                   2.000,00   CR     3.379,50
//
// Descriptions wrapped onto the next line are joined back onto their row.
type LedgerExtractor struct{}

func (e *LedgerExtractor) Format() models.FormatType { return models.FormatLedger }

var ledgerIndicators = map[string]bool{
	"DR": true, "CR": true, "S": true, "H": true,
}

var ledgerColumnHeaders = []string{
	"description", "dr/cr", "balance", "amount",
	"buchungstext", "betrag", "saldo", "s/h",
}

func (e *LedgerExtractor) Extract(pages []string) (*Extraction, error) {
	ex := &Extraction{Format: models.FormatLedger}
	lastRow := -1
	// held are dateless lines at the top of a new page. They continue the
	// previous page's last row unless the page repeats the column header.
	var held []string

	for _, l := range documentLines(pages) {
		m := datePatternDotted.FindStringSubmatch(l.text)
		if m == nil {
			if lastRow < 0 {
				continue
			}
			samePage := ex.Rows[lastRow].Page == l.page
			switch {
			case containsAny(l.text, ledgerColumnHeaders):
				lastRow, held = -1, nil
			case isContinuation(l.text) && samePage:
				ex.Rows[lastRow].Description += " " + l.text
			case isContinuation(l.text):
				held = append(held, l.text)
			case samePage:
				lastRow = -1
			}
			continue
		}

		if lastRow >= 0 && len(held) > 0 {
			ex.Rows[lastRow].Description += " " + strings.Join(held, " ")
		}
		held = nil

		fields := strings.Fields(strings.TrimSpace(l.text[len(m[1]):]))
		row, reason := parseLedgerFields(fields)
		if reason != "" {
			ex.skip(l, reason)
			lastRow = -1
			continue
		}
		row.Date = m[1]
		row.Page = l.page
		row.Line = l.num
		ex.Rows = append(ex.Rows, row)
		lastRow = len(ex.Rows) - 1
	}
	if lastRow >= 0 && len(held) > 0 {
		ex.Rows[lastRow].Description += " " + strings.Join(held, " ")
	}

	return finish(ex)
}

// parseLedgerFields splits "<description> <amount> <DR|CR> [balance]".
// A row without an indicator keeps its amount and leaves the sign decision
// to normalization.
func parseLedgerFields(fields []string) (models.RawRow, string) {
	var row models.RawRow

	ind := -1
	for i := len(fields) - 1; i >= 0 && i >= len(fields)-2; i-- {
		if ledgerIndicators[strings.ToUpper(fields[i])] {
			ind = i
			break
		}
	}

	switch {
	case ind > 0:
		row.Indicator = strings.ToUpper(fields[ind])
		if ind+1 < len(fields) {
			row.Balance = fields[ind+1]
		}
		fields = fields[:ind]
	case ind == 0:
		return row, "missing description and amount"
	}

	n := len(fields)
	if n == 0 || !isAmountToken(fields[n-1]) {
		return row, "no amount column"
	}
	row.Amount = fields[n-1]
	if n == 1 {
		return row, "missing description"
	}
	row.Description = strings.Join(fields[:n-1], " ")
	return row, ""
}

// isContinuation reports whether a dateless line continues the previous
// row's description rather than being page furniture or a total.
func isContinuation(s string) bool {
	if isSummaryLine(s) || containsAny(s, ledgerColumnHeaders) {
		return false
	}
	for _, f := range strings.Fields(s) {
		if isAmountToken(f) {
			return false
		}
	}
	return true
}
