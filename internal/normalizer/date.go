package normalizer

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/insightdelivered/spendsense/internal/models"
)

var errBadDate = errors.New("not a valid calendar date")

// layoutParser parses dates with a fixed time layout. Month names match
// case-insensitively.
func layoutParser(layouts ...string) func(string) (models.Date, error) {
	return func(s string) (models.Date, error) {
		s = strings.TrimSpace(s)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.DateOf(t), nil
			}
		}
		return models.Date{}, errBadDate
	}
}

var (
	dayMonthName = regexp.MustCompile(`(?i)^(\d{1,2})\s+([A-Za-z]{3})[A-Za-z]*\.?\s+(\d{2,4})$`)
	dayMonthNum  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
)

var monthNames = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"MAY": time.May, "JUN": time.June, "JUL": time.July, "AUG": time.August,
	"SEP": time.September, "OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// parseDayFirst handles "5 Jan. 2024", "5 Jan 24" and "5/1/2024". Numeric
// dates are day first; a month above 12 means the fields are swapped.
func parseDayFirst(s string) (models.Date, error) {
	s = strings.TrimSpace(s)

	if m := dayMonthName.FindStringSubmatch(s); m != nil {
		month, ok := monthNames[strings.ToUpper(m[2])]
		if !ok {
			return models.Date{}, errBadDate
		}
		day, _ := strconv.Atoi(m[1])
		return checkedDate(expandYear(m[3]), month, day)
	}

	if m := dayMonthNum.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		return checkedDate(expandYear(m[3]), time.Month(month), day)
	}

	return models.Date{}, errBadDate
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}

// checkedDate rejects values time.Date would silently roll over.
func checkedDate(year int, month time.Month, day int) (models.Date, error) {
	if month < time.January || month > time.December || day < 1 {
		return models.Date{}, errBadDate
	}
	d := models.NewDate(year, month, day)
	if d.Time().Day() != day || d.Time().Month() != month {
		return models.Date{}, errBadDate
	}
	return d, nil
}
