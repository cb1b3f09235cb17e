package compliance

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Shared fixtures: a fully compliant MYR invoice with one service line.
// ---------------------------------------------------------------------------

func validSeller() *Organization {
	return &Organization{
		Name:            "Kedai Maju Enterprise",
		TIN:             "C1234567890",
		IndustryCode:    "62010", // computer programming activities
		SSTRegistered:   true,
		CountryCode:     "MYS",
		DefaultCurrency: "MYR",
	}
}

func validBuyer() *Buyer {
	return &Buyer{
		Name:        "Syarikat Pembeli Sdn Bhd",
		TIN:         "C0987654321",
		CountryCode: "MYS",
	}
}

func validInvoice() *Invoice {
	return &Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-2026-0042",
		DocumentType:  DocTypeInvoice,
		IssueDate:     time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		CurrencyCode:  "MYR",
		ExchangeRate:  dec("1.000000"),
		Subtotal:      dec("1000.00"),
		SSTAmount:     dec("60.00"),
		TotalDiscount: dec("0.00"),
		GrandTotal:    dec("1060.00"),
	}
}

func validLines() []InvoiceLine {
	return []InvoiceLine{{
		LineNumber:     1,
		Description:    "Consulting services",
		Quantity:       dec("1.000"),
		UnitPrice:      dec("1000.0000"),
		DiscountAmount: dec("0.00"),
		LineTotal:      dec("1000.00"),
		SSTRate:        dec("6.00"),
		SSTAmount:      dec("60.00"),
	}}
}

func validInput() Input {
	return Input{
		Invoice: validInvoice(),
		Lines:   validLines(),
		Seller:  validSeller(),
		Buyer:   validBuyer(),
	}
}

func codesOf(fs []Finding) []string {
	codes := make([]string, len(fs))
	for i, f := range fs {
		codes[i] = f.RuleCode
	}
	return codes
}

func countCode(fs []Finding, code string) int {
	n := 0
	for _, f := range fs {
		if f.RuleCode == code {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// mandatory_fields
// ---------------------------------------------------------------------------

func TestCheckMandatoryFields(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *Input)
		wantCode string
	}{
		{"missing invoice number", func(in *Input) { in.Invoice.InvoiceNumber = "" }, CodeMissingInvoiceNumber},
		{"whitespace invoice number", func(in *Input) { in.Invoice.InvoiceNumber = "   " }, CodeMissingInvoiceNumber},
		{"missing issue date", func(in *Input) { in.Invoice.IssueDate = time.Time{} }, CodeMissingIssueDate},
		{"missing seller TIN", func(in *Input) { in.Seller.TIN = "" }, CodeMissingSellerTIN},
		{"missing seller name", func(in *Input) { in.Seller.Name = "" }, CodeMissingSellerName},
		{"missing buyer TIN", func(in *Input) { in.Buyer.TIN = "" }, CodeMissingBuyerTIN},
		{"nil buyer", func(in *Input) { in.Buyer = nil }, CodeMissingBuyerTIN},
		{"no line items", func(in *Input) { in.Lines = []InvoiceLine{} }, CodeMissingLineItems},
		{"missing currency", func(in *Input) { in.Invoice.CurrencyCode = "" }, CodeMissingCurrency},
		{"negative grand total", func(in *Input) { in.Invoice.GrandTotal = dec("-1.00") }, CodeInvalidGrandTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			fs := checkMandatoryFields(in)
			if countCode(fs, tt.wantCode) != 1 {
				t.Errorf("want one %s finding, got %v", tt.wantCode, codesOf(fs))
			}
			for _, f := range fs {
				if f.Severity != SeverityError {
					t.Errorf("finding %s: want severity error, got %s", f.RuleCode, f.Severity)
				}
			}
		})
	}
}

func TestCheckMandatoryFields_CleanInvoice(t *testing.T) {
	if fs := checkMandatoryFields(validInput()); len(fs) != 0 {
		t.Errorf("want no findings, got %v", codesOf(fs))
	}
}

func TestCheckMandatoryFields_BuyerTINExemptions(t *testing.T) {
	t.Run("individual buyer without TIN", func(t *testing.T) {
		in := validInput()
		in.Buyer = &Buyer{Name: "Ali bin Abu", IsIndividual: true}
		if fs := checkMandatoryFields(in); countCode(fs, CodeMissingBuyerTIN) != 0 {
			t.Errorf("individual buyer should not require a TIN, got %v", codesOf(fs))
		}
	})

	t.Run("consolidated invoice without buyer", func(t *testing.T) {
		in := validInput()
		in.Invoice.IsConsolidated = true
		in.Buyer = nil
		if fs := checkMandatoryFields(in); countCode(fs, CodeMissingBuyerTIN) != 0 {
			t.Errorf("consolidated invoice should not require a buyer TIN, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// tin_format
// ---------------------------------------------------------------------------

func TestCheckTINFormat(t *testing.T) {
	t.Run("valid TINs produce no findings", func(t *testing.T) {
		if fs := checkTINFormat(validInput()); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("malformed seller TIN", func(t *testing.T) {
		in := validInput()
		in.Seller.TIN = "c1234567890" // lowercase prefix
		fs := checkTINFormat(in)
		if countCode(fs, CodeSellerTINFormat) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeSellerTINFormat, codesOf(fs))
		}
		if fs[0].FixSuggestion == "" {
			t.Error("TIN format finding should carry a fix suggestion")
		}
		if fs[0].FieldPath != "seller.tin" {
			t.Errorf("field path: want seller.tin, got %q", fs[0].FieldPath)
		}
	})

	t.Run("malformed buyer TIN", func(t *testing.T) {
		in := validInput()
		in.Buyer.TIN = "12345"
		fs := checkTINFormat(in)
		if countCode(fs, CodeBuyerTINFormat) != 1 {
			t.Errorf("want one %s finding, got %v", CodeBuyerTINFormat, codesOf(fs))
		}
	})

	t.Run("empty TINs are left to mandatory_fields", func(t *testing.T) {
		in := validInput()
		in.Seller.TIN = ""
		in.Buyer.TIN = ""
		if fs := checkTINFormat(in); len(fs) != 0 {
			t.Errorf("want no findings for empty TINs, got %v", codesOf(fs))
		}
	})

	t.Run("nil buyer is skipped", func(t *testing.T) {
		in := validInput()
		in.Buyer = nil
		if fs := checkTINFormat(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// invoice_numbering
// ---------------------------------------------------------------------------

func TestCheckInvoiceNumbering(t *testing.T) {
	tests := []struct {
		name        string
		number      string
		wantFinding bool
	}{
		{"well-formed", "INV-2026-0042", false},
		{"slash and dot", "KM/2026/08.15", false},
		{"embedded space", "INV 42", true},
		{"control character", "INV\t42", true},
		{"over 50 characters", "INV-0123456789012345678901234567890123456789012345678901", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Invoice.InvoiceNumber = tt.number

			fs := checkInvoiceNumbering(in)
			if tt.wantFinding {
				if countCode(fs, CodeInvoiceNumberFormat) != 1 {
					t.Fatalf("want one %s finding, got %v", CodeInvoiceNumberFormat, codesOf(fs))
				}
				if fs[0].Severity != SeverityWarning {
					t.Errorf("numbering findings are warnings, got %s", fs[0].Severity)
				}
			} else if len(fs) != 0 {
				t.Errorf("want no findings, got %v", codesOf(fs))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// line_integrity
// ---------------------------------------------------------------------------

func TestCheckLineIntegrity(t *testing.T) {
	t.Run("clean lines", func(t *testing.T) {
		if fs := checkLineIntegrity(validInput()); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("duplicate line numbers", func(t *testing.T) {
		in := validInput()
		dup := in.Lines[0]
		in.Lines = append(in.Lines, dup)
		fs := checkLineIntegrity(in)
		if countCode(fs, CodeDuplicateLineNumber) != 1 {
			t.Errorf("want one %s finding, got %v", CodeDuplicateLineNumber, codesOf(fs))
		}
	})

	t.Run("non-contiguous line numbers are fine", func(t *testing.T) {
		in := validInput()
		in.Lines[0].LineNumber = 7
		if fs := checkLineIntegrity(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("zero quantity", func(t *testing.T) {
		in := validInput()
		in.Lines[0].Quantity = dec("0")
		fs := checkLineIntegrity(in)
		if countCode(fs, CodeInvalidLineQuantity) != 1 {
			t.Errorf("want one %s finding, got %v", CodeInvalidLineQuantity, codesOf(fs))
		}
	})

	t.Run("negative unit price", func(t *testing.T) {
		in := validInput()
		in.Lines[0].UnitPrice = dec("-1.0000")
		fs := checkLineIntegrity(in)
		if countCode(fs, CodeInvalidUnitPrice) != 1 {
			t.Errorf("want one %s finding, got %v", CodeInvalidUnitPrice, codesOf(fs))
		}
	})

	t.Run("line total mismatch", func(t *testing.T) {
		in := validInput()
		in.Lines[0].LineTotal = dec("999.00")
		fs := checkLineIntegrity(in)
		if countCode(fs, CodeLineTotalMismatch) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeLineTotalMismatch, codesOf(fs))
		}
		if fs[0].FieldPath != "lines[0].lineTotal" {
			t.Errorf("field path: want lines[0].lineTotal, got %q", fs[0].FieldPath)
		}
	})

	t.Run("one sen rounding difference is tolerated", func(t *testing.T) {
		in := validInput()
		in.Lines[0].LineTotal = dec("1000.01")
		fs := checkLineIntegrity(in)
		if countCode(fs, CodeLineTotalMismatch) != 0 {
			t.Errorf("one sen difference should pass, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// sst_calculation
// ---------------------------------------------------------------------------

func TestCheckSSTCalculation(t *testing.T) {
	t.Run("clean invoice", func(t *testing.T) {
		if fs := checkSSTCalculation(validInput()); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("line SST mismatch points at the line", func(t *testing.T) {
		in := validInput()
		in.Lines[0].SSTAmount = dec("50.00") // should be 60.00
		in.Invoice.SSTAmount = dec("60.00")  // aggregate still matches expectation
		fs := checkSSTCalculation(in)
		if countCode(fs, CodeSSTLineMismatch) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeSSTLineMismatch, codesOf(fs))
		}
		if fs[0].FieldPath != "lines[0].sstAmount" {
			t.Errorf("field path: want lines[0].sstAmount, got %q", fs[0].FieldPath)
		}
	})

	t.Run("exempt line with non-zero SST", func(t *testing.T) {
		in := validInput()
		in.Lines[0].ExemptionCode = "E01"
		fs := checkSSTCalculation(in)
		if countCode(fs, CodeSSTLineMismatch) != 1 {
			t.Errorf("want one %s finding for exempt line, got %v", CodeSSTLineMismatch, codesOf(fs))
		}
	})

	t.Run("aggregate SST mismatch", func(t *testing.T) {
		in := validInput()
		in.Invoice.SSTAmount = dec("55.00") // lines say 60.00
		fs := checkSSTCalculation(in)
		if countCode(fs, CodeSSTTotalMismatch) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeSSTTotalMismatch, codesOf(fs))
		}
		if fs[0].FieldPath != "sstAmount" {
			t.Errorf("field path: want sstAmount, got %q", fs[0].FieldPath)
		}
	})

	t.Run("one sen rounding difference is tolerated", func(t *testing.T) {
		in := validInput()
		in.Lines[0].SSTAmount = dec("60.01")
		in.Invoice.SSTAmount = dec("60.01")
		if fs := checkSSTCalculation(in); len(fs) != 0 {
			t.Errorf("want no findings within tolerance, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// exchange_rate
// ---------------------------------------------------------------------------

func TestCheckExchangeRate(t *testing.T) {
	tests := []struct {
		name        string
		currency    string
		rate        string
		wantFinding bool
	}{
		{"MYR with rate 1", "MYR", "1.000000", false},
		{"MYR with foreign rate", "MYR", "4.720000", true},
		{"USD with real rate", "USD", "4.720000", false},
		{"USD with rate 1", "USD", "1.000000", true},
		{"USD with zero rate", "USD", "0.000000", true},
		{"USD with negative rate", "USD", "-4.720000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Invoice.CurrencyCode = tt.currency
			in.Invoice.ExchangeRate = dec(tt.rate)

			fs := checkExchangeRate(in)
			if tt.wantFinding {
				if countCode(fs, CodeExchangeRateMismatch) != 1 || len(fs) != 1 {
					t.Errorf("want exactly one %s finding, got %v", CodeExchangeRateMismatch, codesOf(fs))
				}
			} else if len(fs) != 0 {
				t.Errorf("want no findings, got %v", codesOf(fs))
			}
		})
	}

	t.Run("seller without default currency assumes MYR", func(t *testing.T) {
		in := validInput()
		in.Seller.DefaultCurrency = ""
		if fs := checkExchangeRate(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// consolidation
// ---------------------------------------------------------------------------

func TestCheckConsolidation(t *testing.T) {
	tests := []struct {
		name         string
		industryCode string
		wantFinding  bool
	}{
		{"telecommunications section prefix", "61", true},
		{"wired telecommunications", "61101", true},
		{"computer programming is allowed", "62", false},
		{"electric power", "35101", true},
		{"water supply", "36001", true},
		{"parking", "52214", true},
		{"public administration", "84111", true},
		{"retail trade is allowed", "47191", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Invoice.IsConsolidated = true
			in.Invoice.ConsolidationPeriod = "2026-08"
			in.Buyer = nil
			in.Seller.IndustryCode = tt.industryCode

			fs := checkConsolidation(in)
			got := countCode(fs, CodeConsolidationProhibited)
			if tt.wantFinding && got != 1 {
				t.Errorf("want one %s finding, got %v", CodeConsolidationProhibited, codesOf(fs))
			}
			if !tt.wantFinding && got != 0 {
				t.Errorf("want no consolidation findings, got %v", codesOf(fs))
			}
		})
	}

	t.Run("not consolidated skips the rule entirely", func(t *testing.T) {
		in := validInput()
		in.Seller.IndustryCode = "61101"
		if fs := checkConsolidation(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("period must match the issue month", func(t *testing.T) {
		in := validInput()
		in.Invoice.IsConsolidated = true
		in.Invoice.ConsolidationPeriod = "2026-07" // issue date is 2026-08-15
		fs := checkConsolidation(in)
		if countCode(fs, CodeConsolidationPeriod) != 1 {
			t.Errorf("want one %s finding, got %v", CodeConsolidationPeriod, codesOf(fs))
		}
	})

	t.Run("empty period is not checked", func(t *testing.T) {
		in := validInput()
		in.Invoice.IsConsolidated = true
		in.Invoice.ConsolidationPeriod = ""
		if fs := checkConsolidation(in); countCode(fs, CodeConsolidationPeriod) != 0 {
			t.Errorf("want no period findings, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// note_reference
// ---------------------------------------------------------------------------

func TestCheckNoteReference(t *testing.T) {
	t.Run("plain invoice needs no reference", func(t *testing.T) {
		if fs := checkNoteReference(validInput()); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	for _, docType := range []DocumentType{DocTypeCreditNote, DocTypeDebitNote, DocTypeRefundNote} {
		t.Run("missing reference on "+string(docType), func(t *testing.T) {
			in := validInput()
			in.Invoice.DocumentType = docType
			in.Invoice.NoteReason = "goods returned"

			fs := checkNoteReference(in)
			if countCode(fs, CodeNoteReferenceMissing) != 1 || len(fs) != 1 {
				t.Errorf("want exactly one %s finding, got %v", CodeNoteReferenceMissing, codesOf(fs))
			}
		})
	}

	t.Run("missing reason", func(t *testing.T) {
		in := validInput()
		ref := uuid.New()
		in.Invoice.DocumentType = DocTypeCreditNote
		in.Invoice.ReferenceInvoiceID = &ref

		fs := checkNoteReference(in)
		if countCode(fs, CodeNoteReasonMissing) != 1 || len(fs) != 1 {
			t.Errorf("want exactly one %s finding, got %v", CodeNoteReasonMissing, codesOf(fs))
		}
	})

	t.Run("complete credit note passes", func(t *testing.T) {
		in := validInput()
		ref := uuid.New()
		in.Invoice.DocumentType = DocTypeCreditNote
		in.Invoice.ReferenceInvoiceID = &ref
		in.Invoice.NoteReason = "billing error"

		if fs := checkNoteReference(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})
}

// ---------------------------------------------------------------------------
// totals_consistency
// ---------------------------------------------------------------------------

func TestCheckTotalsConsistency(t *testing.T) {
	t.Run("clean invoice", func(t *testing.T) {
		if fs := checkTotalsConsistency(validInput()); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})

	t.Run("subtotal out of step with lines", func(t *testing.T) {
		in := validInput()
		in.Invoice.Subtotal = dec("900.00")
		in.Invoice.GrandTotal = dec("960.00") // formula still holds
		fs := checkTotalsConsistency(in)
		if countCode(fs, CodeTotalsMismatch) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeTotalsMismatch, codesOf(fs))
		}
		if fs[0].FieldPath != "subtotal" {
			t.Errorf("field path: want subtotal, got %q", fs[0].FieldPath)
		}
	})

	t.Run("grand total formula violation", func(t *testing.T) {
		in := validInput()
		in.Invoice.GrandTotal = dec("1100.00") // should be 1060.00
		fs := checkTotalsConsistency(in)
		if countCode(fs, CodeTotalsMismatch) != 1 {
			t.Fatalf("want one %s finding, got %v", CodeTotalsMismatch, codesOf(fs))
		}
		if fs[0].FieldPath != "grandTotal" {
			t.Errorf("field path: want grandTotal, got %q", fs[0].FieldPath)
		}
	})

	t.Run("discount feeds the grand total", func(t *testing.T) {
		in := validInput()
		in.Invoice.TotalDiscount = dec("100.00")
		in.Invoice.GrandTotal = dec("960.00")
		if fs := checkTotalsConsistency(in); len(fs) != 0 {
			t.Errorf("want no findings, got %v", codesOf(fs))
		}
	})
}
