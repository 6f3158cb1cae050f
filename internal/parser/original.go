package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/spendsense/internal/models"
)

// CardmemberExtractor handles the cardmember card statement, one
// transaction per line:
//
//	5 Jan. 2024 WHOLE FOODS MARKET AUSTIN JANE DOE 120.50
//	12/01/24 PAYMENT RECEIVED - THANK YOU -500.00
//	18 Jan 2024 PHARMACY PLUS JOHN DOE 45.10 FS
//
// A trailing cardmember name is split off the description using the
// configured hints or the most recent "Cardmember <name>" section header.
type CardmemberExtractor struct {
	opts Options
}

func (e *CardmemberExtractor) Format() models.FormatType { return models.FormatOriginal }

var cardmemberSection = regexp.MustCompile(`(?i)^card\s?member:?\s+([A-Za-z][A-Za-z .'-]+)$`)

// flexibleSpendingFlag marks a row charged to a flexible spending account.
const flexibleSpendingFlag = "FS"

func (e *CardmemberExtractor) Extract(pages []string) (*Extraction, error) {
	ex := &Extraction{Format: models.FormatOriginal}
	section := ""

	for _, l := range documentLines(pages) {
		if m := cardmemberSection.FindStringSubmatch(l.text); m != nil {
			section = strings.TrimSpace(m[1])
			continue
		}
		if dateRangePattern.MatchString(l.text) {
			continue
		}

		date := leadingDate(l.text)
		if date == "" {
			continue
		}

		fields := strings.Fields(strings.TrimSpace(l.text[len(date):]))
		if len(fields) == 0 {
			// bare date, e.g. a statement date header
			continue
		}

		row := models.RawRow{Date: date, Page: l.page, Line: l.num}

		if fields[len(fields)-1] == flexibleSpendingFlag {
			row.Notes = flexibleSpendingFlag
			fields = fields[:len(fields)-1]
		}

		amount, rest := splitTrailingAmount(fields)
		if amount == "" {
			ex.skip(l, "no amount column")
			continue
		}
		row.Amount = amount

		desc := strings.Join(rest, " ")
		row.Cardmember, desc = splitCardmember(desc, e.opts.CardmemberHints, section)
		desc = strings.TrimSpace(strings.TrimRight(desc, "- "))
		if desc == "" {
			ex.skip(l, "missing description")
			continue
		}
		row.Description = desc
		ex.Rows = append(ex.Rows, row)
	}

	return finish(ex)
}

func leadingDate(s string) string {
	if m := datePatternText.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := datePatternSlash.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// splitTrailingAmount pops the amount off the end of a row, joining a sign
// or currency symbol separated from the digits by a space ("- 45.00").
func splitTrailingAmount(fields []string) (string, []string) {
	n := len(fields)
	if n == 0 || !isAmountToken(fields[n-1]) {
		return "", fields
	}
	amount := fields[n-1]
	n--
	if n > 0 {
		switch fields[n-1] {
		case "-", "$", "-$":
			amount = fields[n-1] + amount
			n--
		}
	}
	return amount, fields[:n]
}

// splitCardmember removes the right-most cardmember name from the
// description. The section header is the fallback owner.
func splitCardmember(desc string, hints []string, section string) (string, string) {
	upper := strings.ToUpper(desc)
	found, at := "", -1
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		if pos := strings.LastIndex(upper, strings.ToUpper(hint)); pos > at {
			found, at = hint, pos
		}
	}
	if at >= 0 {
		return found, strings.TrimSpace(desc[:at])
	}
	if section != "" {
		if pos := strings.LastIndex(upper, strings.ToUpper(section)); pos > 0 {
			desc = strings.TrimSpace(desc[:pos])
		}
	}
	return section, desc
}
