package parser

import (
	"regexp"
	"strings"
)

// Date patterns shared by the layouts.
var (
	// D Mon YYYY, D Mon. YY (e.g. "1 Jan. 2024")
	datePatternText = regexp.MustCompile(`(?i)^(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{2,4})\b`)
	// D/M/YY or D/M/YYYY
	datePatternSlash = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4})\b`)
	// DD.MM.YYYY
	datePatternDotted = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{4})\b`)
	// "1 Jan 2024 - 31 Jan 2024" statement period headers
	dateRangePattern = regexp.MustCompile(`(?i)\d{1,2}\s+[A-Za-z]{3}\.?\s+\d{4}\s*[-–]\s*\d{1,2}\s+[A-Za-z]{3}\.?\s+\d{4}`)
	yearPattern      = regexp.MustCompile(`\b(20\d{2})\b`)
)

// line is a non-empty document line with its position.
type line struct {
	page int
	num  int
	text string
}

// documentLines flattens pages into normalized, non-empty lines. Page and
// line numbers are 1-based and refer to the original page text.
func documentLines(pages []string) []line {
	var out []line
	for p, page := range pages {
		for i, raw := range strings.Split(page, "\n") {
			text := normalizeLine(raw)
			if text == "" {
				continue
			}
			out = append(out, line{page: p + 1, num: i + 1, text: text})
		}
	}
	return out
}

// normalizeLine collapses inconsistent inter-field whitespace, including the
// non-breaking spaces and tabs PDF text extraction leaves behind.
func normalizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// summaryKeywords mark page furniture and balance lines that never hold a
// transaction.
var summaryKeywords = []string{
	"opening balance", "closing balance", "balance brought forward",
	"balance carried forward", "previous balance", "previous statement balance",
	"new balance", "total account balance", "statement period", "page ",
	"continued on next page", "continued from previous page", "account number",
	"total debits", "total credits", "minimum payment",
}

func isSummaryLine(s string) bool {
	return containsAny(s, summaryKeywords)
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// isAmountToken reports whether a field looks like a money amount in any of
// the supported notations ("1,234.56", "(12.00)", "-$5.00", "2.000,00").
func isAmountToken(s string) bool {
	s = strings.Trim(s, "()")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "-")
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digits > 0
}

// statementYear returns the latest 20xx year mentioned in the first lines of
// a statement, or 0 when there is none.
func statementYear(lines []line, limit int) int {
	year := 0
	for i, l := range lines {
		if i >= limit {
			break
		}
		for _, m := range yearPattern.FindAllString(l.text, -1) {
			y := int(m[2]-'0')*10 + int(m[3]-'0') + 2000
			if y > year {
				year = y
			}
		}
	}
	return year
}
