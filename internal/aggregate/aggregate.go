// Package aggregate reduces canonical transactions to statement statistics.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/spendsense/internal/models"
)

// Summarize computes totals, per-category totals and the date span. It is
// defined for an empty sequence: zero total, empty totals map, no range.
// The transactions slice is copied; warnings are kept as given.
func Summarize(format models.FormatType, txns []models.Transaction, warnings []models.SkippedRow) *models.ProcessingResult {
	result := &models.ProcessingResult{
		FormatType:       format,
		TotalAmount:      decimal.Zero,
		TransactionCount: len(txns),
		Totals:           make(map[string]decimal.Decimal),
		Transactions:     make([]models.Transaction, len(txns)),
		Warnings:         make([]models.SkippedRow, len(warnings)),
	}
	copy(result.Transactions, txns)
	copy(result.Warnings, warnings)

	for i, txn := range txns {
		label := txn.Category
		if label == "" {
			label = models.Uncategorized
			result.Transactions[i].Category = label
		}

		result.TotalAmount = result.TotalAmount.Add(txn.Amount)
		result.Totals[label] = result.Totals[label].Add(txn.Amount)

		if result.DateRange == nil {
			result.DateRange = &models.DateRange{Min: txn.Date, Max: txn.Date}
			continue
		}
		if txn.Date.Before(result.DateRange.Min) {
			result.DateRange.Min = txn.Date
		}
		if txn.Date.After(result.DateRange.Max) {
			result.DateRange.Max = txn.Date
		}
	}

	return result
}

// Group is one line of a breakdown. Original sums the amounts in their
// original currency, which only adds up within a currency breakdown.
type Group struct {
	Key      string
	Total    decimal.Decimal
	Original decimal.Decimal
	Count    int
}

// Keys of the SpendingVsPayments breakdown.
const (
	Spending = "Spending"
	Payments = "Payments"
)

// ByCategory breaks the result down by category in first-seen order, the
// order exports list them in.
func ByCategory(result *models.ProcessingResult) []Group {
	return groupBy(result.Transactions, func(t models.Transaction) string { return t.Category })
}

// ByCardmember breaks the result down by cardmember. Transactions without
// a cardmember are left out.
func ByCardmember(result *models.ProcessingResult) []Group {
	return groupBy(result.Transactions, func(t models.Transaction) string { return t.Cardmember })
}

// ByCurrency breaks the result down by transaction currency.
func ByCurrency(result *models.ProcessingResult) []Group {
	return groupBy(result.Transactions, func(t models.Transaction) string { return t.Currency })
}

// ByCountry breaks the result down by merchant country. Transactions
// without a country are left out.
func ByCountry(result *models.ProcessingResult) []Group {
	return groupBy(result.Transactions, func(t models.Transaction) string { return t.MerchantCountry })
}

// SpendingVsPayments splits the result into debits and credits, always in
// that order. Totals keep their sign, so the two add up to the result total.
func SpendingVsPayments(result *models.ProcessingResult) []Group {
	groups := groupBy(result.Transactions, func(t models.Transaction) string {
		switch t.Amount.Sign() {
		case -1:
			return Spending
		case 1:
			return Payments
		}
		return ""
	})
	out := []Group{
		{Key: Spending, Total: decimal.Zero, Original: decimal.Zero},
		{Key: Payments, Total: decimal.Zero, Original: decimal.Zero},
	}
	for _, g := range groups {
		if g.Key == Spending {
			out[0] = g
		} else {
			out[1] = g
		}
	}
	return out
}

func groupBy(txns []models.Transaction, key func(models.Transaction) string) []Group {
	index := make(map[string]int)
	var out []Group
	for _, txn := range txns {
		k := key(txn)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Group{Key: k, Total: decimal.Zero, Original: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(txn.Amount)
		out[i].Original = out[i].Original.Add(txn.OriginalAmount)
		out[i].Count++
	}
	return out
}
