// Package invoice manages e-Invoice documents and their validation
// lifecycle. Every write path re-runs the compliance engine and persists
// the resulting findings, so the stored score is never stale relative to
// the stored document.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/invoisku/api/internal/compliance"
)

var (
	// ErrNotFound is returned when an invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrOrganizationNotFound is returned when the referenced seller
	// organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrDuplicateNumber is returned when the invoice number is already
	// used within the organization.
	ErrDuplicateNumber = errors.New("invoice number already exists for organization")
	// ErrFindingNotFound is returned when a finding does not exist.
	ErrFindingNotFound = errors.New("finding not found")
)

// Invoice is a stored e-Invoice header together with its cached
// validation outcome.
type Invoice struct {
	ID                  uuid.UUID               `json:"id"`
	OrganizationID      uuid.UUID               `json:"organization_id"`
	InvoiceNumber       string                  `json:"invoice_number"`
	DocumentType        compliance.DocumentType `json:"document_type"`
	IssueDate           time.Time               `json:"issue_date"`
	DueDate             *time.Time              `json:"due_date,omitempty"`
	CurrencyCode        string                  `json:"currency_code"`
	ExchangeRate        decimal.Decimal         `json:"exchange_rate"`
	Subtotal            decimal.Decimal         `json:"subtotal"`
	SSTAmount           decimal.Decimal         `json:"sst_amount"`
	TotalDiscount       decimal.Decimal         `json:"total_discount"`
	GrandTotal          decimal.Decimal         `json:"grand_total"`
	IsConsolidated      bool                    `json:"is_consolidated"`
	ConsolidationPeriod string                  `json:"consolidation_period,omitempty"`
	ReferenceInvoiceID  *uuid.UUID              `json:"reference_invoice_id,omitempty"`
	NoteReason          string                  `json:"note_reason,omitempty"`
	BuyerName           string                  `json:"buyer_name"`
	BuyerTIN            string                  `json:"buyer_tin"`
	BuyerIsIndividual   bool                    `json:"buyer_is_individual"`
	BuyerAddress        string                  `json:"buyer_address,omitempty"`
	ComplianceScore     *int                    `json:"compliance_score,omitempty"`
	IsCompliant         *bool                   `json:"is_compliant,omitempty"`
	ValidatedAt         *time.Time              `json:"validated_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// Line is a stored invoice line item.
type Line struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	LineNumber     int             `json:"line_number"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
	SSTRate        decimal.Decimal `json:"sst_rate"`
	SSTAmount      decimal.Decimal `json:"sst_amount"`
	ExemptionCode  string          `json:"exemption_code,omitempty"`
}

// FindingRecord is a persisted validation finding. Findings are replaced
// wholesale on each validation run; resolved_at survives only until the
// next run rediscovers or clears the finding.
type FindingRecord struct {
	ID            uuid.UUID           `json:"id"`
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	RuleCode      string              `json:"rule_code"`
	Severity      compliance.Severity `json:"severity"`
	Message       string              `json:"message"`
	FieldPath     string              `json:"field_path,omitempty"`
	FixSuggestion string              `json:"fix_suggestion,omitempty"`
	Position      int                 `json:"position"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// LineParams holds the input for one invoice line.
type LineParams struct {
	LineNumber     int             `json:"line_number"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
	SSTRate        decimal.Decimal `json:"sst_rate"`
	SSTAmount      decimal.Decimal `json:"sst_amount"`
	ExemptionCode  string          `json:"exemption_code"`
}

// CreateParams holds the input for creating an invoice with its lines.
type CreateParams struct {
	OrganizationID      uuid.UUID               `json:"organization_id"`
	InvoiceNumber       string                  `json:"invoice_number"`
	DocumentType        compliance.DocumentType `json:"document_type"`
	IssueDate           time.Time               `json:"issue_date"`
	DueDate             *time.Time              `json:"due_date"`
	CurrencyCode        string                  `json:"currency_code"`
	ExchangeRate        decimal.Decimal         `json:"exchange_rate"`
	Subtotal            decimal.Decimal         `json:"subtotal"`
	SSTAmount           decimal.Decimal         `json:"sst_amount"`
	TotalDiscount       decimal.Decimal         `json:"total_discount"`
	GrandTotal          decimal.Decimal         `json:"grand_total"`
	IsConsolidated      bool                    `json:"is_consolidated"`
	ConsolidationPeriod string                  `json:"consolidation_period"`
	ReferenceInvoiceID  *uuid.UUID              `json:"reference_invoice_id"`
	NoteReason          string                  `json:"note_reason"`
	BuyerName           string                  `json:"buyer_name"`
	BuyerTIN            string                  `json:"buyer_tin"`
	BuyerIsIndividual   bool                    `json:"buyer_is_individual"`
	BuyerAddress        string                  `json:"buyer_address"`
	Lines               []LineParams            `json:"lines"`
}

// Service provides invoice persistence and validation orchestration.
type Service struct {
	pool   *pgxpool.Pool
	engine *compliance.Engine
	logger *slog.Logger
}

// NewService creates an invoice service backed by the given pool and
// validation engine.
func NewService(pool *pgxpool.Pool, engine *compliance.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, engine: engine, logger: logger}
}

const invoiceColumns = `id, organization_id, invoice_number, document_type, issue_date, due_date,
	currency_code, exchange_rate, subtotal, sst_amount, total_discount, grand_total,
	is_consolidated, consolidation_period, reference_invoice_id, note_reason,
	buyer_name, buyer_tin, buyer_is_individual, buyer_address,
	compliance_score, is_compliant, validated_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.InvoiceNumber, &inv.DocumentType,
		&inv.IssueDate, &inv.DueDate, &inv.CurrencyCode, &inv.ExchangeRate,
		&inv.Subtotal, &inv.SSTAmount, &inv.TotalDiscount, &inv.GrandTotal,
		&inv.IsConsolidated, &inv.ConsolidationPeriod, &inv.ReferenceInvoiceID, &inv.NoteReason,
		&inv.BuyerName, &inv.BuyerTIN, &inv.BuyerIsIndividual, &inv.BuyerAddress,
		&inv.ComplianceScore, &inv.IsCompliant, &inv.ValidatedAt, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

// Create stores a new invoice with its lines, validates it, and persists
// the findings and score in the same transaction. The report is returned
// alongside the stored invoice so callers see the outcome immediately.
func (s *Service) Create(ctx context.Context, params CreateParams) (Invoice, *compliance.Report, error) {
	seller, err := s.loadSeller(ctx, params.OrganizationID)
	if err != nil {
		return Invoice{}, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (id, organization_id, invoice_number, document_type, issue_date, due_date,
			currency_code, exchange_rate, subtotal, sst_amount, total_discount, grand_total,
			is_consolidated, consolidation_period, reference_invoice_id, note_reason,
			buyer_name, buyer_tin, buyer_is_individual, buyer_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
		RETURNING `+invoiceColumns,
		uuid.New(), params.OrganizationID, params.InvoiceNumber, string(params.DocumentType),
		params.IssueDate, params.DueDate, params.CurrencyCode, params.ExchangeRate,
		params.Subtotal, params.SSTAmount, params.TotalDiscount, params.GrandTotal,
		params.IsConsolidated, params.ConsolidationPeriod, params.ReferenceInvoiceID, params.NoteReason,
		params.BuyerName, params.BuyerTIN, params.BuyerIsIndividual, params.BuyerAddress, now,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Invoice{}, nil, ErrDuplicateNumber
		}
		return Invoice{}, nil, fmt.Errorf("inserting invoice: %w", err)
	}

	lines, err := insertLines(ctx, tx, inv.ID, params.Lines)
	if err != nil {
		return Invoice{}, nil, err
	}

	report, err := s.validateAndStore(ctx, tx, &inv, lines, seller)
	if err != nil {
		return Invoice{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, nil, fmt.Errorf("committing invoice: %w", err)
	}

	s.logger.Info("invoice created",
		"id", inv.ID,
		"number", inv.InvoiceNumber,
		"score", report.Score,
		"valid", report.IsValid,
	)
	return inv, report, nil
}

// Update replaces the invoice header and all lines, then revalidates.
// It returns ErrNotFound if the invoice does not exist.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params CreateParams) (Invoice, *compliance.Report, error) {
	seller, err := s.loadSeller(ctx, params.OrganizationID)
	if err != nil {
		return Invoice{}, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE invoices
		SET invoice_number = $2, document_type = $3, issue_date = $4, due_date = $5,
			currency_code = $6, exchange_rate = $7, subtotal = $8, sst_amount = $9,
			total_discount = $10, grand_total = $11, is_consolidated = $12,
			consolidation_period = $13, reference_invoice_id = $14, note_reason = $15,
			buyer_name = $16, buyer_tin = $17, buyer_is_individual = $18, buyer_address = $19,
			updated_at = $20
		WHERE id = $1
		RETURNING `+invoiceColumns,
		id, params.InvoiceNumber, string(params.DocumentType), params.IssueDate, params.DueDate,
		params.CurrencyCode, params.ExchangeRate, params.Subtotal, params.SSTAmount,
		params.TotalDiscount, params.GrandTotal, params.IsConsolidated,
		params.ConsolidationPeriod, params.ReferenceInvoiceID, params.NoteReason,
		params.BuyerName, params.BuyerTIN, params.BuyerIsIndividual, params.BuyerAddress,
		time.Now().UTC(),
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Invoice{}, nil, ErrDuplicateNumber
		}
		return Invoice{}, nil, fmt.Errorf("updating invoice %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
		return Invoice{}, nil, fmt.Errorf("clearing invoice lines: %w", err)
	}
	lines, err := insertLines(ctx, tx, inv.ID, params.Lines)
	if err != nil {
		return Invoice{}, nil, err
	}

	report, err := s.validateAndStore(ctx, tx, &inv, lines, seller)
	if err != nil {
		return Invoice{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, nil, fmt.Errorf("committing invoice update: %w", err)
	}
	return inv, report, nil
}

// Get returns an invoice with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, []Line, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, nil, ErrNotFound
		}
		return Invoice{}, nil, fmt.Errorf("getting invoice %s: %w", id, err)
	}

	lines, err := s.loadLines(ctx, id)
	if err != nil {
		return Invoice{}, nil, err
	}
	return inv, lines, nil
}

// List returns an organization's invoices, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE organization_id = $1
		ORDER BY issue_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`,
		orgID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Validate re-runs the compliance engine against the stored invoice and
// replaces its findings and cached score.
func (s *Service) Validate(ctx context.Context, id uuid.UUID) (*compliance.Report, error) {
	inv, lines, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seller, err := s.loadSeller(ctx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	report, err := s.validateAndStore(ctx, tx, &inv, lines, seller)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing validation: %w", err)
	}

	s.logger.Info("invoice validated", "id", id, "score", report.Score, "valid", report.IsValid)
	return report, nil
}

// ListFindings returns the persisted findings for an invoice in catalog
// order.
func (s *Service) ListFindings(ctx context.Context, invoiceID uuid.UUID) ([]FindingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, rule_code, severity, message, field_path, fix_suggestion,
			position, resolved_at, created_at
		FROM validation_findings
		WHERE invoice_id = $1
		ORDER BY position`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}
	defer rows.Close()

	var findings []FindingRecord
	for rows.Next() {
		var f FindingRecord
		if err := rows.Scan(&f.ID, &f.InvoiceID, &f.RuleCode, &f.Severity, &f.Message,
			&f.FieldPath, &f.FixSuggestion, &f.Position, &f.ResolvedAt, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// ResolveFinding marks a persisted finding as manually resolved. The
// mark is advisory: the next validation run rebuilds findings from
// scratch.
func (s *Service) ResolveFinding(ctx context.Context, findingID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE validation_findings SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`,
		findingID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("resolving finding %s: %w", findingID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFindingNotFound
	}
	return nil
}

// ListStaleIDs returns IDs of invoices validated before the cutoff, or
// never validated at all. Used by the background revalidation job.
func (s *Service) ListStaleIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM invoices
		WHERE validated_at IS NULL OR validated_at < $1
		ORDER BY validated_at ASC NULLS FIRST
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale invoices: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// loadSeller fetches the organization profile in engine form.
func (s *Service) loadSeller(ctx context.Context, orgID uuid.UUID) (*compliance.Organization, error) {
	var (
		seller    compliance.Organization
		sstNumber string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, tin, industry_code, sst_number, default_currency
		FROM organizations WHERE id = $1`,
		orgID,
	).Scan(&seller.Name, &seller.TIN, &seller.IndustryCode, &sstNumber, &seller.DefaultCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("loading organization %s: %w", orgID, err)
	}
	seller.SSTRegistered = sstNumber != ""
	seller.CountryCode = "MYS"
	return &seller, nil
}

func (s *Service) loadLines(ctx context.Context, invoiceID uuid.UUID) ([]Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, line_number, description, quantity, unit_price,
			discount_amount, line_total, sst_rate, sst_amount, exemption_code
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_number`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.DiscountAmount, &l.LineTotal, &l.SSTRate, &l.SSTAmount,
			&l.ExemptionCode); err != nil {
			return nil, fmt.Errorf("scanning invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// validateAndStore runs the engine and persists the outcome inside the
// caller's transaction: findings are replaced wholesale and the cached
// score is updated on the invoice row.
func (s *Service) validateAndStore(ctx context.Context, tx pgx.Tx, inv *Invoice, lines []Line, seller *compliance.Organization) (*compliance.Report, error) {
	engineInv, engineLines, buyer := toEngineInput(inv, lines)

	report, err := s.engine.Validate(engineInv, engineLines, seller, buyer)
	if err != nil {
		return nil, fmt.Errorf("validating invoice %s: %w", inv.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM validation_findings WHERE invoice_id = $1`, inv.ID); err != nil {
		return nil, fmt.Errorf("clearing findings: %w", err)
	}

	now := time.Now().UTC()
	for i, f := range report.Findings {
		_, err := tx.Exec(ctx, `
			INSERT INTO validation_findings (id, invoice_id, rule_code, severity, message,
				field_path, fix_suggestion, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), inv.ID, f.RuleCode, string(f.Severity), f.Message,
			f.FieldPath, f.FixSuggestion, i, now,
		)
		if err != nil {
			return nil, fmt.Errorf("storing finding %s: %w", f.RuleCode, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE invoices SET compliance_score = $2, is_compliant = $3, validated_at = $4
		WHERE id = $1`,
		inv.ID, report.Score, report.IsValid, now,
	); err != nil {
		return nil, fmt.Errorf("caching validation result: %w", err)
	}

	inv.ComplianceScore = &report.Score
	inv.IsCompliant = &report.IsValid
	inv.ValidatedAt = &now
	return report, nil
}

// toEngineInput converts stored rows into the engine's input types. The
// buyer is nil when no buyer details were captured, which the engine
// treats as a consolidated or anonymous B2C document.
func toEngineInput(inv *Invoice, lines []Line) (*compliance.Invoice, []compliance.InvoiceLine, *compliance.Buyer) {
	engineInv := &compliance.Invoice{
		ID:                  inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		DocumentType:        inv.DocumentType,
		IssueDate:           inv.IssueDate,
		CurrencyCode:        inv.CurrencyCode,
		ExchangeRate:        inv.ExchangeRate,
		Subtotal:            inv.Subtotal,
		SSTAmount:           inv.SSTAmount,
		TotalDiscount:       inv.TotalDiscount,
		GrandTotal:          inv.GrandTotal,
		IsConsolidated:      inv.IsConsolidated,
		ConsolidationPeriod: inv.ConsolidationPeriod,
		ReferenceInvoiceID:  inv.ReferenceInvoiceID,
		NoteReason:          inv.NoteReason,
	}
	if inv.DueDate != nil {
		engineInv.DueDate = *inv.DueDate
	}

	engineLines := make([]compliance.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		engineLines = append(engineLines, compliance.InvoiceLine{
			LineNumber:     l.LineNumber,
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountAmount: l.DiscountAmount,
			LineTotal:      l.LineTotal,
			SSTRate:        l.SSTRate,
			SSTAmount:      l.SSTAmount,
			ExemptionCode:  l.ExemptionCode,
		})
	}

	var buyer *compliance.Buyer
	if inv.BuyerName != "" || inv.BuyerTIN != "" {
		buyer = &compliance.Buyer{
			Name:         inv.BuyerName,
			TIN:          inv.BuyerTIN,
			IsIndividual: inv.BuyerIsIndividual,
			CountryCode:  "MYS",
		}
	}
	return engineInv, engineLines, buyer
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, params []LineParams) ([]Line, error) {
	lines := make([]Line, 0, len(params))
	for _, p := range params {
		l := Line{
			ID:             uuid.New(),
			InvoiceID:      invoiceID,
			LineNumber:     p.LineNumber,
			Description:    p.Description,
			Quantity:       p.Quantity,
			UnitPrice:      p.UnitPrice,
			DiscountAmount: p.DiscountAmount,
			LineTotal:      p.LineTotal,
			SSTRate:        p.SSTRate,
			SSTAmount:      p.SSTAmount,
			ExemptionCode:  p.ExemptionCode,
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, line_number, description, quantity,
				unit_price, discount_amount, line_total, sst_rate, sst_amount, exemption_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			l.ID, l.InvoiceID, l.LineNumber, l.Description, l.Quantity,
			l.UnitPrice, l.DiscountAmount, l.LineTotal, l.SSTRate, l.SSTAmount, l.ExemptionCode,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("inserting line %d: duplicate line number", p.LineNumber)
			}
			return nil, fmt.Errorf("inserting line %d: %w", p.LineNumber, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
