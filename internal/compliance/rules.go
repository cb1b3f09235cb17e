package compliance

import (
	"fmt"
	"strings"
)

// Input bundles everything a rule may inspect. The engine guarantees
// Invoice, Lines and Seller are non-nil before any rule runs; Buyer may
// be nil for consolidated B2C invoices.
type Input struct {
	Invoice *Invoice
	Lines   []InvoiceLine
	Seller  *Organization
	Buyer   *Buyer
}

// RuleFunc evaluates one compliance rule. Implementations must be pure:
// no I/O, no mutation of the input, and the same input always yields the
// same findings.
type RuleFunc func(in Input) []Finding

// Rule is a named catalog entry.
type Rule struct {
	Name  string
	Check RuleFunc
}

// DefaultCatalog returns the standard rule set in its documented
// evaluation order. Rules are independent in effect, but the order is
// fixed so that reports are deterministically ordered. The returned
// slice is a fresh copy; callers may append their own rules without
// affecting other engines.
func DefaultCatalog() []Rule {
	return []Rule{
		{Name: "mandatory_fields", Check: checkMandatoryFields},
		{Name: "tin_format", Check: checkTINFormat},
		{Name: "invoice_numbering", Check: checkInvoiceNumbering},
		{Name: "line_integrity", Check: checkLineIntegrity},
		{Name: "sst_calculation", Check: checkSSTCalculation},
		{Name: "exchange_rate", Check: checkExchangeRate},
		{Name: "consolidation", Check: checkConsolidation},
		{Name: "note_reference", Check: checkNoteReference},
		{Name: "totals_consistency", Check: checkTotalsConsistency},
	}
}

// tinShapesHint is the fix suggestion attached to TIN format findings.
const tinShapesHint = "Expected one of: C followed by 10 digits (corporate), " +
	"G followed by 10 digits (government), N followed by 10 digits (non-resident), " +
	"or exactly 12 digits (individual)."

func checkMandatoryFields(in Input) []Finding {
	var fs []Finding
	inv := in.Invoice

	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingInvoiceNumber,
			Severity:  SeverityError,
			Message:   "invoice number is required",
			FieldPath: "invoiceNumber",
		})
	}
	if inv.IssueDate.IsZero() {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingIssueDate,
			Severity:  SeverityError,
			Message:   "issue date is required",
			FieldPath: "issueDate",
		})
	}
	if strings.TrimSpace(in.Seller.TIN) == "" {
		fs = append(fs, Finding{
			RuleCode:      CodeMissingSellerTIN,
			Severity:      SeverityError,
			Message:       "seller TIN is required",
			FieldPath:     "seller.tin",
			FixSuggestion: "Register the organization's TIN with LHDN and record it on the profile.",
		})
	}
	if strings.TrimSpace(in.Seller.Name) == "" {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingSellerName,
			Severity:  SeverityError,
			Message:   "seller name is required",
			FieldPath: "seller.name",
		})
	}

	// Buyer TIN is mandatory for B2B documents. Consolidated B2C
	// invoices have no single buyer, and individuals may transact
	// without providing one.
	buyerExempt := inv.IsConsolidated || (in.Buyer != nil && in.Buyer.IsIndividual)
	if !buyerExempt && (in.Buyer == nil || strings.TrimSpace(in.Buyer.TIN) == "") {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingBuyerTIN,
			Severity:  SeverityError,
			Message:   "buyer TIN is required for non-consolidated invoices",
			FieldPath: "buyer.tin",
		})
	}

	if len(in.Lines) == 0 {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingLineItems,
			Severity:  SeverityError,
			Message:   "invoice must have at least one line item",
			FieldPath: "lines",
		})
	}
	if strings.TrimSpace(inv.CurrencyCode) == "" {
		fs = append(fs, Finding{
			RuleCode:  CodeMissingCurrency,
			Severity:  SeverityError,
			Message:   "currency code is required",
			FieldPath: "currency",
		})
	}
	if inv.GrandTotal.IsNegative() {
		fs = append(fs, Finding{
			RuleCode:  CodeInvalidGrandTotal,
			Severity:  SeverityError,
			Message:   fmt.Sprintf("grand total must not be negative, got %s", inv.GrandTotal.StringFixed(2)),
			FieldPath: "grandTotal",
		})
	}

	return fs
}

func checkTINFormat(in Input) []Finding {
	var fs []Finding

	if tin := strings.TrimSpace(in.Seller.TIN); tin != "" {
		if _, ok := ClassifyTIN(tin); !ok {
			fs = append(fs, Finding{
				RuleCode:      CodeSellerTINFormat,
				Severity:      SeverityError,
				Message:       fmt.Sprintf("seller TIN %q does not match any recognized format", tin),
				FieldPath:     "seller.tin",
				FixSuggestion: tinShapesHint,
			})
		}
	}
	if in.Buyer != nil {
		if tin := strings.TrimSpace(in.Buyer.TIN); tin != "" {
			if _, ok := ClassifyTIN(tin); !ok {
				fs = append(fs, Finding{
					RuleCode:      CodeBuyerTINFormat,
					Severity:      SeverityError,
					Message:       fmt.Sprintf("buyer TIN %q does not match any recognized format", tin),
					FieldPath:     "buyer.tin",
					FixSuggestion: tinShapesHint,
				})
			}
		}
	}

	return fs
}

// checkInvoiceNumbering is a heuristic: uniqueness is enforced by the
// persistence layer, and sequencing gaps are a soft signal under
// concurrent issuance, so anything it flags is a warning rather than an
// error.
func checkInvoiceNumbering(in Input) []Finding {
	num := in.Invoice.InvoiceNumber
	if strings.TrimSpace(num) == "" {
		return nil // missing is handled by mandatory_fields
	}

	malformed := len(num) > 50
	for _, r := range num {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' ||
			r == '-' || r == '/' || r == '_' || r == '.' {
			continue
		}
		malformed = true
		break
	}
	if !malformed {
		return nil
	}

	return []Finding{{
		RuleCode:      CodeInvoiceNumberFormat,
		Severity:      SeverityWarning,
		Message:       fmt.Sprintf("invoice number %q looks malformed", num),
		FieldPath:     "invoiceNumber",
		FixSuggestion: "Use up to 50 characters from A-Z, a-z, 0-9, '-', '/', '_' and '.'.",
	}}
}

func checkLineIntegrity(in Input) []Finding {
	var fs []Finding
	seen := make(map[int]bool, len(in.Lines))

	for i, l := range in.Lines {
		if seen[l.LineNumber] {
			fs = append(fs, Finding{
				RuleCode:  CodeDuplicateLineNumber,
				Severity:  SeverityError,
				Message:   fmt.Sprintf("line number %d appears more than once", l.LineNumber),
				FieldPath: fmt.Sprintf("lines[%d].lineNumber", i),
			})
		}
		seen[l.LineNumber] = true

		if !l.Quantity.IsPositive() {
			fs = append(fs, Finding{
				RuleCode:  CodeInvalidLineQuantity,
				Severity:  SeverityError,
				Message:   fmt.Sprintf("quantity must be positive, got %s", l.Quantity.String()),
				FieldPath: fmt.Sprintf("lines[%d].quantity", i),
			})
		}
		if l.UnitPrice.IsNegative() {
			fs = append(fs, Finding{
				RuleCode:  CodeInvalidUnitPrice,
				Severity:  SeverityError,
				Message:   fmt.Sprintf("unit price must not be negative, got %s", l.UnitPrice.String()),
				FieldPath: fmt.Sprintf("lines[%d].unitPrice", i),
			})
			continue
		}

		expected := ExpectedLineTotal(l)
		if !WithinTolerance(l.LineTotal, expected) {
			fs = append(fs, Finding{
				RuleCode: CodeLineTotalMismatch,
				Severity: SeverityError,
				Message: fmt.Sprintf("line total %s does not match quantity x unit price - discount (expected %s)",
					l.LineTotal.StringFixed(2), expected.StringFixed(2)),
				FieldPath: fmt.Sprintf("lines[%d].lineTotal", i),
			})
		}
	}

	return fs
}

func checkSSTCalculation(in Input) []Finding {
	var fs []Finding

	for i, l := range in.Lines {
		expected := ExpectedLineTax(l)
		if WithinTolerance(l.SSTAmount, expected) {
			continue
		}
		msg := fmt.Sprintf("line SST amount %s does not match line total %s at rate %s%% (expected %s)",
			l.SSTAmount.StringFixed(2), l.LineTotal.StringFixed(2), l.SSTRate.String(), expected.StringFixed(2))
		if l.ExemptionCode != "" {
			msg = fmt.Sprintf("line carries exemption code %q but has SST amount %s (expected 0.00)",
				l.ExemptionCode, l.SSTAmount.StringFixed(2))
		}
		fs = append(fs, Finding{
			RuleCode:  CodeSSTLineMismatch,
			Severity:  SeverityError,
			Message:   msg,
			FieldPath: fmt.Sprintf("lines[%d].sstAmount", i),
		})
	}

	if len(in.Lines) > 0 {
		agg := Aggregate(in.Lines)
		if !WithinTolerance(in.Invoice.SSTAmount, agg.SST) {
			fs = append(fs, Finding{
				RuleCode: CodeSSTTotalMismatch,
				Severity: SeverityError,
				Message: fmt.Sprintf("invoice SST amount %s does not match the sum of line SST (expected %s)",
					in.Invoice.SSTAmount.StringFixed(2), agg.SST.StringFixed(2)),
				FieldPath: "sstAmount",
			})
		}
	}

	return fs
}

func checkExchangeRate(in Input) []Finding {
	base := in.Seller.DefaultCurrency
	if base == "" {
		base = MYR
	}
	currency := in.Invoice.CurrencyCode
	if currency == "" {
		return nil // missing currency is handled by mandatory_fields
	}
	rate := in.Invoice.ExchangeRate

	if currency == base {
		if !rate.Equal(one) {
			return []Finding{{
				RuleCode: CodeExchangeRateMismatch,
				Severity: SeverityError,
				Message: fmt.Sprintf("exchange rate must be 1.000000 for %s invoices, got %s",
					base, rate.StringFixed(6)),
				FieldPath:     "exchangeRate",
				FixSuggestion: "Set the exchange rate to 1.000000 for base-currency invoices.",
			}}
		}
		return nil
	}

	if !rate.IsPositive() || rate.Equal(one) {
		return []Finding{{
			RuleCode: CodeExchangeRateMismatch,
			Severity: SeverityError,
			Message: fmt.Sprintf("a %s-to-%s exchange rate is required for foreign currency invoices, got %s",
				currency, base, rate.StringFixed(6)),
			FieldPath:     "exchangeRate",
			FixSuggestion: "Record the exchange rate in effect on the issue date.",
		}}
	}
	return nil
}

func checkConsolidation(in Input) []Finding {
	inv := in.Invoice
	if !inv.IsConsolidated {
		return nil
	}

	var fs []Finding

	code := in.Seller.IndustryCode
	if code != "" {
		for _, p := range prohibitedConsolidationIndustries {
			if strings.HasPrefix(code, p.Prefix) {
				fs = append(fs, Finding{
					RuleCode: CodeConsolidationProhibited,
					Severity: SeverityError,
					Message: fmt.Sprintf("industry %s (%s) may not issue consolidated B2C e-Invoices",
						code, p.Name),
					FieldPath:     "isConsolidated",
					FixSuggestion: "Issue an individual e-Invoice for each transaction instead.",
				})
				break
			}
		}
	}

	if inv.ConsolidationPeriod != "" && !inv.IssueDate.IsZero() {
		if want := inv.IssueDate.Format("2006-01"); inv.ConsolidationPeriod != want {
			fs = append(fs, Finding{
				RuleCode: CodeConsolidationPeriod,
				Severity: SeverityError,
				Message: fmt.Sprintf("consolidation period %s does not match the issue date month %s",
					inv.ConsolidationPeriod, want),
				FieldPath: "consolidationPeriod",
			})
		}
	}

	return fs
}

func checkNoteReference(in Input) []Finding {
	inv := in.Invoice
	if !inv.DocumentType.RequiresReference() {
		return nil
	}

	var fs []Finding
	if inv.ReferenceInvoiceID == nil {
		fs = append(fs, Finding{
			RuleCode: CodeNoteReferenceMissing,
			Severity: SeverityError,
			Message: fmt.Sprintf("document type %s requires a reference to the original invoice",
				inv.DocumentType),
			FieldPath:     "referenceInvoiceId",
			FixSuggestion: "Link the note to the invoice it adjusts.",
		})
	}
	if strings.TrimSpace(inv.NoteReason) == "" {
		fs = append(fs, Finding{
			RuleCode: CodeNoteReasonMissing,
			Severity: SeverityError,
			Message: fmt.Sprintf("document type %s requires a reason for the adjustment",
				inv.DocumentType),
			FieldPath: "noteReason",
		})
	}
	return fs
}

func checkTotalsConsistency(in Input) []Finding {
	inv := in.Invoice
	var fs []Finding

	if len(in.Lines) > 0 {
		agg := Aggregate(in.Lines)
		if !WithinTolerance(inv.Subtotal, agg.Subtotal) {
			fs = append(fs, Finding{
				RuleCode: CodeTotalsMismatch,
				Severity: SeverityError,
				Message: fmt.Sprintf("subtotal %s does not match the sum of line totals (expected %s)",
					inv.Subtotal.StringFixed(2), agg.Subtotal.StringFixed(2)),
				FieldPath: "subtotal",
			})
		}
	}

	expectedGrand := ExpectedGrandTotal(inv.Subtotal, inv.TotalDiscount, inv.SSTAmount)
	if !WithinTolerance(inv.GrandTotal, expectedGrand) {
		fs = append(fs, Finding{
			RuleCode: CodeTotalsMismatch,
			Severity: SeverityError,
			Message: fmt.Sprintf("grand total %s does not match subtotal - discount + SST (expected %s)",
				inv.GrandTotal.StringFixed(2), expectedGrand.StringFixed(2)),
			FieldPath: "grandTotal",
		})
	}

	return fs
}
