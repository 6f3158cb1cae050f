package writer

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/insightdelivered/spendsense/internal/aggregate"
	"github.com/insightdelivered/spendsense/internal/models"
)

// csvRow is one exported transaction. Amounts are exact decimal strings.
type csvRow struct {
	Date            string `csv:"Date"`
	Description     string `csv:"Description"`
	Category        string `csv:"Category"`
	Amount          string `csv:"Amount"`
	Currency        string `csv:"Currency"`
	OriginalAmount  string `csv:"Original_Amount"`
	ExchangeRate    string `csv:"Exchange_Rate"`
	Cardmember      string `csv:"Cardmember"`
	PostingDate     string `csv:"Posting_Date"`
	MerchantCountry string `csv:"Merchant_Country"`
	Notes           string `csv:"Notes"`
	Format          string `csv:"Format"`
}

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	// IncludeSummary appends per-category and grand total rows after the
	// transactions.
	IncludeSummary bool
}

// Write writes the result's transactions in CSV format.
func (w *CSVWriter) Write(out io.Writer, result *models.ProcessingResult) error {
	rows := make([]csvRow, 0, len(result.Transactions)+len(result.Totals)+1)
	for _, txn := range result.Transactions {
		rows = append(rows, toCSVRow(txn))
	}

	if w.IncludeSummary {
		for _, g := range aggregate.ByCategory(result) {
			rows = append(rows, csvRow{
				Description: fmt.Sprintf("TOTAL %s (%d)", g.Key, g.Count),
				Category:    g.Key,
				Amount:      g.Total.StringFixed(2),
				Format:      summaryMarker,
			})
		}
		rows = append(rows, csvRow{
			Description: "GRAND TOTAL",
			Amount:      result.TotalAmount.StringFixed(2),
			Format:      summaryMarker,
		})
	}

	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// summaryMarker tags summary rows in the Format column so they can be told
// apart from transactions.
const summaryMarker = "summary"

func toCSVRow(txn models.Transaction) csvRow {
	row := csvRow{
		Date:            txn.Date.String(),
		Description:     txn.Description,
		Category:        txn.Category,
		Amount:          txn.Amount.StringFixed(2),
		Currency:        txn.Currency,
		OriginalAmount:  txn.OriginalAmount.StringFixed(2),
		ExchangeRate:    txn.ExchangeRate.String(),
		Cardmember:      txn.Cardmember,
		MerchantCountry: txn.MerchantCountry,
		Notes:           txn.Notes,
		Format:          string(txn.FormatType),
	}
	if txn.PostingDate != nil {
		row.PostingDate = txn.PostingDate.String()
	}
	return row
}
