package parser

import (
	"testing"
)

func TestCardmemberExtractor(t *testing.T) {
	e := &CardmemberExtractor{opts: Options{CardmemberHints: []string{"JANE DOE", "JOHN DOE"}}}
	ex, err := e.Extract([]string{cardmemberSample})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		date       string
		desc       string
		amount     string
		cardmember string
		notes      string
	}{
		{"5 Jan. 2024", "WHOLE FOODS MARKET AUSTIN", "120.50", "JANE DOE", ""},
		{"12/01/24", "PAYMENT RECEIVED - THANK YOU", "-500.00", "JANE DOE", ""},
		{"18 Jan 2024", "PHARMACY PLUS", "45.10", "JOHN DOE", "FS"},
		{"25/13/2024", "BOOKSHOP", "(12.00)", "JANE DOE", ""},
	}

	if len(ex.Rows) != len(tests) {
		t.Fatalf("rows: got %d, want %d: %+v", len(ex.Rows), len(tests), ex.Rows)
	}
	for i, tt := range tests {
		got := ex.Rows[i]
		if got.Date != tt.date {
			t.Errorf("row %d date: got %q, want %q", i, got.Date, tt.date)
		}
		if got.Description != tt.desc {
			t.Errorf("row %d description: got %q, want %q", i, got.Description, tt.desc)
		}
		if got.Amount != tt.amount {
			t.Errorf("row %d amount: got %q, want %q", i, got.Amount, tt.amount)
		}
		if got.Cardmember != tt.cardmember {
			t.Errorf("row %d cardmember: got %q, want %q", i, got.Cardmember, tt.cardmember)
		}
		if got.Notes != tt.notes {
			t.Errorf("row %d notes: got %q, want %q", i, got.Notes, tt.notes)
		}
	}

	if len(ex.Skipped) != 1 {
		t.Fatalf("skipped: got %d, want 1: %+v", len(ex.Skipped), ex.Skipped)
	}
	if ex.Skipped[0].Line != 7 {
		t.Errorf("skipped line: got %d, want 7", ex.Skipped[0].Line)
	}
	if ex.Skipped[0].Reason != "no amount column" {
		t.Errorf("skipped reason: got %q", ex.Skipped[0].Reason)
	}
}

func TestCardmemberExtractor_SplitSign(t *testing.T) {
	ex, err := (&CardmemberExtractor{}).Extract([]string{"3 Feb 2024 REFUND   STORE  -  45.00\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Rows[0].Amount != "-45.00" {
		t.Errorf("amount: got %q, want -45.00", ex.Rows[0].Amount)
	}
	if ex.Rows[0].Description != "REFUND STORE" {
		t.Errorf("description: got %q", ex.Rows[0].Description)
	}
}

func TestSplitTrailingAmount(t *testing.T) {
	tests := []struct {
		fields []string
		amount string
		rest   int
	}{
		{[]string{"COFFEE", "4.50"}, "4.50", 1},
		{[]string{"REFUND", "$", "10.00"}, "$10.00", 1},
		{[]string{"REFUND", "(10.00)"}, "(10.00)", 1},
		{[]string{"OPENING", "FEE"}, "", 2},
		{nil, "", 0},
	}
	for _, tt := range tests {
		amount, rest := splitTrailingAmount(tt.fields)
		if amount != tt.amount || len(rest) != tt.rest {
			t.Errorf("splitTrailingAmount(%v) = %q, %d fields; want %q, %d", tt.fields, amount, len(rest), tt.amount, tt.rest)
		}
	}
}
