package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// FixtureOrganization creates a minimal seller organization and returns its ID.
func (tdb *TestDB) FixtureOrganization(t *testing.T, name, tin string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	_, err := tdb.Pool.Exec(ctx,
		`INSERT INTO organizations (id, name, tin, brn, sst_number, industry_code, default_currency, created_at, updated_at)
		 VALUES ($1, $2, $3, '202301012345', 'W10-1808-32000001', '62010', 'MYR', $4, $4)`,
		id, name, tin, now,
	)
	if err != nil {
		t.Fatalf("creating fixture organization %q: %v", name, err)
	}
	return id
}

// FixtureInvoice creates a minimal compliant invoice with one line and
// returns the invoice ID. Totals are consistent: 1000.00 + 6% SST.
func (tdb *TestDB) FixtureInvoice(t *testing.T, orgID uuid.UUID, invoiceNumber string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC()
	_, err := tdb.Pool.Exec(ctx,
		`INSERT INTO invoices (id, organization_id, invoice_number, document_type, issue_date,
		                       currency_code, exchange_rate, subtotal, sst_amount, total_discount, grand_total,
		                       buyer_name, buyer_tin, created_at, updated_at)
		 VALUES ($1, $2, $3, '01', $4, 'MYR', 1.000000, 1000.00, 60.00, 0.00, 1060.00,
		         'Kedai Contoh Sdn Bhd', 'C0987654321', $5, $5)`,
		id, orgID, invoiceNumber, now.Format("2006-01-02"), now,
	)
	if err != nil {
		t.Fatalf("creating fixture invoice %q: %v", invoiceNumber, err)
	}

	_, err = tdb.Pool.Exec(ctx,
		`INSERT INTO invoice_lines (id, invoice_id, line_number, description, quantity, unit_price,
		                            discount_amount, line_total, sst_rate, sst_amount)
		 VALUES ($1, $2, 1, 'Consulting services', 1.000, 1000.0000, 0.00, 1000.00, 6.00, 60.00)`,
		uuid.New(), id,
	)
	if err != nil {
		t.Fatalf("creating fixture invoice line: %v", err)
	}
	return id
}
