package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/insightdelivered/spendsense/internal/models"
)

// RBCExtractor handles card statements where each transaction starts with
// a transaction date and a posting date without a year:
//
//	JAN 05 JAN 08 LOBLAWS #1234 TORONTO ON $120.50
//	JAN 09 JAN 10 HOTEL ZUM HIRSCH MUNICH DEU
//	Foreign Currency - EUR 180.00 Exchange rate - 1.4650
//	$263.70
//
// The CAD amount sits on the header line or a follow-up line. The year
// comes from the statement header.
type RBCExtractor struct {
	opts Options
}

func (e *RBCExtractor) Format() models.FormatType { return models.FormatRBC }

// yearScanLines is how deep into the statement the year search goes.
const yearScanLines = 80

var (
	rbcTxnStart   = regexp.MustCompile(`^(` + monthAlternation + `) (\d{2}) (` + monthAlternation + `) (\d{2}) (.+)$`)
	rbcFXLine     = regexp.MustCompile(`(?i)^Foreign Currency\s*-\s*([A-Z]{3})\s+([\d,]+\.\d{2})\s+Exchange rate\s*-\s*([.\d]+)$`)
	rbcAmountOnly = regexp.MustCompile(`^-?\$\s?[\d,]+\.\d{2}$`)
	rbcAmountTail = regexp.MustCompile(`\s(-?\$\s?[\d,]+\.\d{2})$`)
	rbcAmountAny  = regexp.MustCompile(`-?\$\s?[\d,]+\.\d{2}`)
)

// countryCodes are the ISO 3166 alpha-3 codes merchants append to
// descriptions.
var countryCodes = map[string]bool{
	"CAN": true, "USA": true, "MEX": true, "POL": true, "DEU": true, "ESP": true,
	"CZE": true, "HUN": true, "CHE": true, "AUT": true, "LTU": true, "LVA": true,
	"EST": true, "GRC": true, "FRA": true, "ITA": true, "GBR": true, "IRL": true,
	"NLD": true, "BEL": true, "PRT": true, "SVK": true, "SVN": true, "HRV": true,
	"ROU": true, "BGR": true, "MNE": true, "SRB": true, "BIH": true, "MKD": true,
	"ALB": true, "CYP": true, "MLT": true, "SWE": true, "NOR": true, "FIN": true,
	"DNK": true, "ISL": true, "TUR": true, "JPN": true, "AUS": true,
}

type rbcGroup struct {
	header line
	month  string
	rest   []line
}

func (e *RBCExtractor) Extract(pages []string) (*Extraction, error) {
	ex := &Extraction{Format: models.FormatRBC}
	lines := documentLines(pages)

	year := statementYear(lines, yearScanLines)
	if year == 0 {
		year = e.opts.now().Year()
	}

	groups := groupRBC(lines)

	// A December to January statement carries both months; December rows
	// belong to the previous year.
	hasJan, hasDec := false, false
	for _, g := range groups {
		hasJan = hasJan || g.month == "JAN"
		hasDec = hasDec || g.month == "DEC"
	}

	for _, g := range groups {
		y := year
		if hasJan && hasDec && g.month == "DEC" {
			y--
		}
		row, reason := parseRBCGroup(g, y)
		if reason != "" {
			ex.skip(g.header, reason)
			continue
		}
		ex.Rows = append(ex.Rows, row)
	}

	return finish(ex)
}

// groupRBC splits lines into transaction groups. Lines before the first
// transaction and page furniture between groups are dropped, so a group
// split by a page break keeps its follow-up lines.
func groupRBC(lines []line) []rbcGroup {
	var groups []rbcGroup
	var current *rbcGroup

	for _, l := range lines {
		if m := rbcTxnStart.FindStringSubmatch(l.text); m != nil {
			groups = append(groups, rbcGroup{header: l, month: m[1]})
			current = &groups[len(groups)-1]
			continue
		}
		if current == nil || isSummaryLine(l.text) {
			continue
		}
		current.rest = append(current.rest, l)
	}
	return groups
}

func parseRBCGroup(g rbcGroup, year int) (models.RawRow, string) {
	m := rbcTxnStart.FindStringSubmatch(g.header.text)
	y := strconv.Itoa(year)

	row := models.RawRow{
		Date:        m[1] + " " + m[2] + " " + y,
		PostingDate: m[3] + " " + m[4] + " " + y,
		Page:        g.header.page,
		Line:        g.header.num,
	}

	desc := m[5]
	if am := rbcAmountTail.FindStringSubmatch(" " + desc); am != nil {
		row.Amount = am[1]
		desc = strings.TrimSpace(strings.TrimSuffix(desc, am[1]))
	}

	for _, l := range g.rest {
		if fx := rbcFXLine.FindStringSubmatch(l.text); fx != nil {
			if row.Currency == "" {
				row.Currency = strings.ToUpper(fx[1])
				row.OriginalAmount = fx[2]
				row.ExchangeRate = fx[3]
			}
			continue
		}
		if row.Amount == "" && rbcAmountOnly.MatchString(l.text) {
			row.Amount = l.text
		}
	}

	// Fall back to the last dollar amount anywhere in the follow-up lines.
	if row.Amount == "" {
		for _, l := range g.rest {
			if rbcFXLine.MatchString(l.text) {
				continue
			}
			if found := rbcAmountAny.FindAllString(l.text, -1); len(found) > 0 {
				row.Amount = found[len(found)-1]
			}
		}
	}

	if desc == "" {
		return row, "missing description"
	}
	if row.Amount == "" {
		return row, "no amount found for transaction"
	}

	row.Description = desc
	row.Country = merchantCountry(desc)
	return row, ""
}

func merchantCountry(desc string) string {
	fields := strings.Fields(desc)
	for i := len(fields) - 1; i >= 0; i-- {
		if countryCodes[fields[i]] {
			return fields[i]
		}
	}
	return ""
}
