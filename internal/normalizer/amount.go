package normalizer

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errEmptyAmount  = errors.New("empty amount")
	errBadAmount    = errors.New("not a number")
	errYearAsAmount = errors.New("looks like a year, not an amount")
)

var plainNumber = regexp.MustCompile(`^\d+(\.\d+)?$`)

// commaDecimal is a comma-decimal amount with optional point-grouped
// thousands: "120,50", "1.379,50", "2000".
var commaDecimal = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})+|\d+)(?:,\d+)?$`)

// currencyMarks are stripped before parsing.
var currencyMarks = []string{"USD", "CAD", "EUR", "GBP", "$", "€", "£"}

// ParseAmount converts amount text to an exact decimal. decimalSep is the
// format's decimal separator ('.' or ','). A leading or trailing minus and
// accounting parentheses mark a negative value.
func ParseAmount(text string, decimalSep rune) (decimal.Decimal, error) {
	s := strings.Join(strings.Fields(text), "")
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	if s == "" || s == "-" {
		return decimal.Zero, errEmptyAmount
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		neg = !neg
		s = s[:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")

	hasSeparator := strings.ContainsRune(s, decimalSep)
	switch decimalSep {
	case ',':
		// "120.50" with no comma is a point-decimal amount.
		if i := strings.LastIndex(s, "."); i >= 0 && !strings.Contains(s, ",") &&
			strings.Count(s, ".") == 1 && len(s)-i-1 == 2 {
			hasSeparator = true
			break
		}
		if !commaDecimal.MatchString(s) {
			return decimal.Zero, errBadAmount
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		// "12,50" with no point is a comma-decimal amount; otherwise commas
		// group thousands.
		if i := strings.LastIndex(s, ","); i >= 0 && !strings.Contains(s, ".") && len(s)-i-1 == 2 {
			s = s[:i] + "." + s[i+1:]
			hasSeparator = true
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, errBadAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	if !hasSeparator && d.IsInteger() && d.GreaterThanOrEqual(decimal.NewFromInt(1900)) && d.LessThanOrEqual(decimal.NewFromInt(2099)) {
		return decimal.Zero, errYearAsAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
