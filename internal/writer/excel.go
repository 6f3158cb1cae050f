package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/spendsense/internal/aggregate"
	"github.com/insightdelivered/spendsense/internal/models"
)

const (
	sheetTransactions = "Transactions"
	sheetSummary      = "Summary"
	sheetCardmembers  = "Cardmembers"
	sheetSpending     = "Spending vs Payments"
	sheetCurrencies   = "Summary_by_Currency"
	sheetCountries    = "Summary_by_Country"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

var transactionHeader = []interface{}{
	"Date", "Description", "Category", "Amount", "Currency", "Original_Amount",
	"Exchange_Rate", "Cardmember", "Posting_Date", "Merchant_Country", "Notes", "Format",
}

// ExcelWriter writes an .xlsx workbook.
type ExcelWriter struct {
	// IncludeSummary adds the Summary sheet plus layout-specific breakdowns:
	// spending, currency and country sheets for rbc statements, a
	// Cardmembers sheet and one sheet per cardmember for cardmember
	// statements.
	IncludeSummary bool
}

// Write writes the workbook to out.
func (w *ExcelWriter) Write(out io.Writer, result *models.ProcessingResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	if err := writeTransactions(f, sheetTransactions, result.Transactions, money); err != nil {
		return fmt.Errorf("writing %s sheet: %w", sheetTransactions, err)
	}

	if w.IncludeSummary {
		if err := writeGroups(f, sheetSummary, "Category", aggregate.ByCategory(result), result, money); err != nil {
			return fmt.Errorf("writing %s sheet: %w", sheetSummary, err)
		}
		switch result.FormatType {
		case models.FormatRBC:
			if err := writeRBCSummaries(f, result, money); err != nil {
				return err
			}
		case models.FormatOriginal:
			if err := writeCardmemberSheets(f, result, money); err != nil {
				return err
			}
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRBCSummaries(f *excelize.File, result *models.ProcessingResult, money int) error {
	if err := writeGroups(f, sheetSpending, "Type", aggregate.SpendingVsPayments(result), result, money); err != nil {
		return fmt.Errorf("writing %s sheet: %w", sheetSpending, err)
	}
	if err := writeCurrencies(f, aggregate.ByCurrency(result), money); err != nil {
		return fmt.Errorf("writing %s sheet: %w", sheetCurrencies, err)
	}
	if groups := aggregate.ByCountry(result); len(groups) > 0 {
		if err := writeGroups(f, sheetCountries, "Country", groups, nil, money); err != nil {
			return fmt.Errorf("writing %s sheet: %w", sheetCountries, err)
		}
	}
	return nil
}

func writeCardmemberSheets(f *excelize.File, result *models.ProcessingResult, money int) error {
	groups := aggregate.ByCardmember(result)
	if len(groups) == 0 {
		return nil
	}
	if err := writeGroups(f, sheetCardmembers, "Cardmember", groups, nil, money); err != nil {
		return fmt.Errorf("writing %s sheet: %w", sheetCardmembers, err)
	}
	for _, g := range groups {
		var txns []models.Transaction
		for _, txn := range result.Transactions {
			if txn.Cardmember == g.Key {
				txns = append(txns, txn)
			}
		}
		sheet := memberSheetName(f, g.Key)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("adding sheet for %s: %w", g.Key, err)
		}
		if err := writeTransactions(f, sheet, txns, money); err != nil {
			return fmt.Errorf("writing %s sheet: %w", sheet, err)
		}
	}
	return nil
}

// memberSheetName turns a cardmember name into a sheet name that Excel
// accepts and that is not already taken in f.
func memberSheetName(f *excelize.File, member string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, member)
	name = strings.Trim(name, "' ")
	if name == "" {
		name = "Member"
	}
	base := truncateRunes(name, maxSheetName)
	name = base
	for n := 2; sheetExists(f, name); n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	return name
}

func sheetExists(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func writeTransactions(f *excelize.File, sheet string, txns []models.Transaction, money int) error {
	if err := f.SetSheetRow(sheet, "A1", &transactionHeader); err != nil {
		return err
	}
	for i, txn := range txns {
		posting := ""
		if txn.PostingDate != nil {
			posting = txn.PostingDate.String()
		}
		row := []interface{}{
			txn.Date.String(),
			txn.Description,
			txn.Category,
			txn.Amount.InexactFloat64(),
			txn.Currency,
			txn.OriginalAmount.InexactFloat64(),
			txn.ExchangeRate.InexactFloat64(),
			txn.Cardmember,
			posting,
			txn.MerchantCountry,
			txn.Notes,
			string(txn.FormatType),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(sheet, "D", money); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 40)
}

// writeGroups writes a breakdown sheet. A non-nil result adds the grand
// total row.
func writeGroups(f *excelize.File, sheet, label string, groups []aggregate.Group, result *models.ProcessingResult, money int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{label, "Transactions", "Total"}); err != nil {
		return err
	}
	row := 2
	for _, g := range groups {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{g.Key, g.Count, g.Total.InexactFloat64()}); err != nil {
			return err
		}
		row++
	}
	if result != nil {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		total := []interface{}{"Grand Total", result.TransactionCount, result.TotalAmount.InexactFloat64()}
		if err := f.SetSheetRow(sheet, cell, &total); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(sheet, "C", money); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 30)
}

// writeCurrencies writes the currency breakdown with both the original
// amounts and the statement-currency totals.
func writeCurrencies(f *excelize.File, groups []aggregate.Group, money int) error {
	if _, err := f.NewSheet(sheetCurrencies); err != nil {
		return err
	}
	header := []interface{}{"Currency", "Transactions", "Original_Amount", "Total"}
	if err := f.SetSheetRow(sheetCurrencies, "A1", &header); err != nil {
		return err
	}
	for i, g := range groups {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{g.Key, g.Count, g.Original.InexactFloat64(), g.Total.InexactFloat64()}
		if err := f.SetSheetRow(sheetCurrencies, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColStyle(sheetCurrencies, "C:D", money)
}
