// Package compliance implements the LHDN e-Invoice validation engine.
// It inspects an invoice together with its line items and the issuing
// organization's profile, evaluates a fixed catalog of regulatory rules,
// and produces a scored, rule-coded report. The engine is stateless and
// performs no I/O: every call is independent and safe to run concurrently.
package compliance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DocumentType is the MyInvois e-Invoice document type code.
type DocumentType string

const (
	DocTypeInvoice    DocumentType = "01"
	DocTypeCreditNote DocumentType = "02"
	DocTypeDebitNote  DocumentType = "03"
	DocTypeRefundNote DocumentType = "04"
)

// RequiresReference reports whether this document type must reference a
// prior invoice. Credit, debit and refund notes all adjust an earlier
// document and are meaningless without one.
func (d DocumentType) RequiresReference() bool {
	return d == DocTypeCreditNote || d == DocTypeDebitNote || d == DocTypeRefundNote
}

// Invoice is the header-level input to validation. Monetary amounts are
// 2dp decimals, the exchange rate is 6dp.
type Invoice struct {
	ID                  uuid.UUID
	InvoiceNumber       string
	DocumentType        DocumentType
	IssueDate           time.Time
	DueDate             time.Time
	CurrencyCode        string
	ExchangeRate        decimal.Decimal
	Subtotal            decimal.Decimal
	SSTAmount           decimal.Decimal
	TotalDiscount       decimal.Decimal
	GrandTotal          decimal.Decimal
	IsConsolidated      bool
	ConsolidationPeriod string // year-month, e.g. "2026-08"
	ReferenceInvoiceID  *uuid.UUID
	NoteReason          string
}

// InvoiceLine is a single line item. Quantity carries 3dp, unit price 4dp,
// monetary amounts 2dp and the SST rate is a 2dp percentage.
type InvoiceLine struct {
	LineNumber     int
	Description    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	LineTotal      decimal.Decimal
	SSTRate        decimal.Decimal
	SSTAmount      decimal.Decimal
	ExemptionCode  string
}

// Organization is the seller profile. The industry code is an MSIC 2008
// classification and governs B2C consolidation eligibility.
type Organization struct {
	Name            string
	TIN             string
	IndustryCode    string
	SSTRegistered   bool
	CountryCode     string
	DefaultCurrency string
}

// Buyer identifies the receiving party. Nil is allowed for consolidated
// B2C invoices, where no single buyer exists.
type Buyer struct {
	Name         string
	TIN          string
	IsIndividual bool
	CountryCode  string
}

// Finding is a single rule violation or warning. Findings are ephemeral
// output: the engine never stores them, and they carry no identity beyond
// the invoice they were computed for.
type Finding struct {
	RuleCode      string   `json:"rule_code"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	FieldPath     string   `json:"field_path,omitempty"`
	FixSuggestion string   `json:"fix_suggestion,omitempty"`
}

// Report is the outcome of one validation call. It is created fresh on
// every call and never mutated after construction.
type Report struct {
	Score    int       `json:"score"`
	IsValid  bool      `json:"is_valid"`
	Findings []Finding `json:"findings"`
}

// Rule codes are stable identifiers: persistence keys findings by
// invoice ID + rule code, so a published code must never be reused for a
// different semantic check.
const (
	CodeMissingInvoiceNumber    = "MISSING_INVOICE_NUMBER"
	CodeMissingIssueDate        = "MISSING_ISSUE_DATE"
	CodeMissingSellerTIN        = "MISSING_SELLER_TIN"
	CodeMissingSellerName       = "MISSING_SELLER_NAME"
	CodeMissingBuyerTIN         = "MISSING_BUYER_TIN"
	CodeMissingLineItems        = "MISSING_LINE_ITEMS"
	CodeMissingCurrency         = "MISSING_CURRENCY"
	CodeInvalidGrandTotal       = "INVALID_GRAND_TOTAL"
	CodeSellerTINFormat         = "SELLER_TIN_FORMAT"
	CodeBuyerTINFormat          = "BUYER_TIN_FORMAT"
	CodeInvoiceNumberFormat     = "INVOICE_NUMBER_FORMAT"
	CodeDuplicateLineNumber     = "DUPLICATE_LINE_NUMBER"
	CodeInvalidLineQuantity     = "INVALID_LINE_QUANTITY"
	CodeInvalidUnitPrice        = "INVALID_UNIT_PRICE"
	CodeLineTotalMismatch       = "LINE_TOTAL_MISMATCH"
	CodeSSTLineMismatch         = "SST_LINE_MISMATCH"
	CodeSSTTotalMismatch        = "SST_TOTAL_MISMATCH"
	CodeExchangeRateMismatch    = "EXCHANGE_RATE_MISMATCH"
	CodeConsolidationProhibited = "CONSOLIDATION_PROHIBITED_INDUSTRY"
	CodeConsolidationPeriod     = "CONSOLIDATION_PERIOD_MISMATCH"
	CodeNoteReferenceMissing    = "NOTE_REFERENCE_MISSING"
	CodeNoteReasonMissing       = "NOTE_REASON_MISSING"
	CodeTotalsMismatch          = "TOTALS_MISMATCH"
)

// MYR is the Malaysian Ringgit, the base currency assumed when the
// organization has no default currency configured.
const MYR = "MYR"

// prohibitedConsolidationIndustries lists the MSIC code prefixes whose
// activities may not issue consolidated B2C e-Invoices under the LHDN
// guideline. Matching is by exact code or code prefix.
var prohibitedConsolidationIndustries = []struct {
	Prefix string
	Name   string
}{
	{"3510", "electric power generation, transmission and distribution"},
	{"3600", "water collection, treatment and supply"},
	{"61", "telecommunications"},
	{"52214", "parking and toll road operation"},
	{"84", "public administration"},
}
