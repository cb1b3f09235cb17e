package compliance

import "fmt"

// Weights maps finding severities to score deductions. The defaults are
// a policy choice and can be overridden per engine, e.g. in tests.
type Weights struct {
	Error   int
	Warning int
	Info    int
}

// DefaultWeights returns the standard scoring policy.
func DefaultWeights() Weights {
	return Weights{Error: 20, Warning: 5, Info: 0}
}

func (w Weights) weightFor(s Severity) int {
	switch s {
	case SeverityError:
		return w.Error
	case SeverityWarning:
		return w.Warning
	default:
		return w.Info
	}
}

// InputError reports a structural problem with the caller's input: a
// programming or integration bug, not a compliance finding. It is the
// only error Validate returns.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("compliance: invalid input: %s %s", e.Field, e.Reason)
}

// Engine evaluates a rule catalog over one invoice at a time. It holds
// no mutable state: the catalog and weights are fixed at construction,
// so a single Engine is safe for concurrent use across goroutines.
type Engine struct {
	catalog []Rule
	weights Weights
}

// NewEngine creates an engine with an explicit catalog and scoring
// policy. The catalog slice is used as-is; callers must not mutate it
// after construction.
func NewEngine(catalog []Rule, weights Weights) *Engine {
	return &Engine{catalog: catalog, weights: weights}
}

// NewDefaultEngine creates an engine with the standard catalog and
// default weights.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultCatalog(), DefaultWeights())
}

// Validate runs every catalog rule against the invoice and returns the
// report. Rules never short-circuit each other: all findings from all
// rules are collected, in catalog order, before scoring.
//
//	score   = 100 - sum of severity weights, clamped to [0,100]
//	isValid = no finding has severity "error"
//
// Validate returns an *InputError only when the input shape is broken
// (nil invoice or seller, or an absent lines slice). It never mutates
// its arguments and retains no references to them after returning. A
// panicking rule is a defect in the catalog and is deliberately not
// recovered here, so it fails tests loudly instead of masking itself as
// a clean report.
func (e *Engine) Validate(inv *Invoice, lines []InvoiceLine, seller *Organization, buyer *Buyer) (*Report, error) {
	if inv == nil {
		return nil, &InputError{Field: "invoice", Reason: "is nil"}
	}
	if lines == nil {
		return nil, &InputError{Field: "lines", Reason: "is nil; pass an empty slice for an invoice with no lines"}
	}
	if seller == nil {
		return nil, &InputError{Field: "seller", Reason: "is nil"}
	}

	in := Input{Invoice: inv, Lines: lines, Seller: seller, Buyer: buyer}

	findings := []Finding{}
	for _, rule := range e.catalog {
		findings = append(findings, rule.Check(in)...)
	}

	score := 100
	isValid := true
	for _, f := range findings {
		score -= e.weights.weightFor(f.Severity)
		if f.Severity == SeverityError {
			isValid = false
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Report{Score: score, IsValid: isValid, Findings: findings}, nil
}
