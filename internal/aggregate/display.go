package aggregate

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Display formats amount for people, e.g. "$1,834.25". Unknown currency
// codes fall back to "1834.25 XYZ".
func Display(amount decimal.Decimal, currency string) string {
	c := money.GetCurrency(currency)
	if c == nil {
		if currency == "" {
			return amount.StringFixed(2)
		}
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, c.Code).Display()
}

// Currency returns the most frequent transaction currency of the result,
// or "" when there are no transactions. Ties go to the first seen.
func Currency(result *models.ProcessingResult) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, txn := range result.Transactions {
		counts[txn.Currency]++
		if n := counts[txn.Currency]; n > bestCount {
			best, bestCount = txn.Currency, n
		}
	}
	return best
}
