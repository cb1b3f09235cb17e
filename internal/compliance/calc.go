package compliance

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	// DefaultSSTRate is the standard Sales and Service Tax rate for
	// services, as a percentage.
	DefaultSSTRate = decimal.NewFromInt(6)

	// Tolerance is the maximum absolute difference allowed between a
	// stored monetary amount and its recomputed value. One sen absorbs
	// rounding differences between systems.
	Tolerance = decimal.RequireFromString("0.01")
)

// RoundRM rounds a monetary amount half-up to 2 decimal places. All
// monetary amounts are finalized through this function so that the
// calculators and the rule evaluators agree on rounding.
func RoundRM(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes quantity * unitPrice - discount, rounded to 2dp.
func LineTotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return RoundRM(quantity.Mul(unitPrice).Sub(discount))
}

// LineTax computes the SST amount for a line total at the given
// percentage rate. An exemption code forces the tax to zero regardless
// of the rate.
func LineTax(lineTotal, rate decimal.Decimal, exemptionCode string) decimal.Decimal {
	if exemptionCode != "" {
		return decimal.Zero
	}
	return RoundRM(lineTotal.Mul(rate).Div(hundred))
}

// ExpectedLineTotal recomputes what a line's total should be from its
// quantity, unit price and discount.
func ExpectedLineTotal(l InvoiceLine) decimal.Decimal {
	return LineTotal(l.Quantity, l.UnitPrice, l.DiscountAmount)
}

// ExpectedLineTax recomputes what a line's SST amount should be from its
// stored line total and rate.
func ExpectedLineTax(l InvoiceLine) decimal.Decimal {
	return LineTax(l.LineTotal, l.SSTRate, l.ExemptionCode)
}

// AggregateTotals holds invoice-level sums derived from line items.
type AggregateTotals struct {
	Subtotal decimal.Decimal // sum of stored line totals
	SST      decimal.Decimal // sum of recomputed line SST amounts
}

// Aggregate sums the stored line totals and the recomputed per-line SST
// amounts. The subtotal uses stored values so that a single bad line
// surfaces as a line-level finding rather than cascading into every
// aggregate check.
func Aggregate(lines []InvoiceLine) AggregateTotals {
	subtotal := decimal.Zero
	sst := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
		sst = sst.Add(ExpectedLineTax(l))
	}
	return AggregateTotals{Subtotal: RoundRM(subtotal), SST: RoundRM(sst)}
}

// ExpectedGrandTotal computes subtotal - discount + sst, rounded to 2dp.
func ExpectedGrandTotal(subtotal, discount, sst decimal.Decimal) decimal.Decimal {
	return RoundRM(subtotal.Sub(discount).Add(sst))
}

// WithinTolerance reports whether two amounts differ by at most one sen.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
