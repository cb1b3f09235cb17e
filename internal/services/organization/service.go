// Package organization manages seller profiles: the business identity
// an invoice is issued under (TIN, BRN, SST registration, MSIC industry
// classification).
package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an organization does not exist.
var ErrNotFound = errors.New("organization not found")

// Organization is a seller profile row.
type Organization struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	TIN             string    `json:"tin"`
	BRN             string    `json:"brn"`
	SSTNumber       string    `json:"sst_number"`
	IndustryCode    string    `json:"industry_code"`
	AddressLine     string    `json:"address_line"`
	City            string    `json:"city"`
	StateCode       string    `json:"state_code"`
	Postcode        string    `json:"postcode"`
	DefaultCurrency string    `json:"default_currency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateParams holds the input for registering an organization.
type CreateParams struct {
	Name            string
	TIN             string
	BRN             string
	SSTNumber       string
	IndustryCode    string
	AddressLine     string
	City            string
	StateCode       string
	Postcode        string
	DefaultCurrency string
}

// UpdateParams holds the input for updating an organization profile.
type UpdateParams struct {
	Name            string
	TIN             string
	BRN             string
	SSTNumber       string
	IndustryCode    string
	AddressLine     string
	City            string
	StateCode       string
	Postcode        string
	DefaultCurrency string
}

// Service provides business logic for organization CRUD operations.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates an organization service backed by the given pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

const orgColumns = `id, name, tin, brn, sst_number, industry_code,
	address_line, city, state_code, postcode, default_currency, created_at, updated_at`

func scanOrganization(row pgx.Row) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.TIN, &o.BRN, &o.SSTNumber, &o.IndustryCode,
		&o.AddressLine, &o.City, &o.StateCode, &o.Postcode, &o.DefaultCurrency,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create registers a new organization.
func (s *Service) Create(ctx context.Context, params CreateParams) (Organization, error) {
	currency := params.DefaultCurrency
	if currency == "" {
		currency = "MYR"
	}

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO organizations (id, name, tin, brn, sst_number, industry_code,
			address_line, city, state_code, postcode, default_currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING `+orgColumns,
		uuid.New(), params.Name, params.TIN, params.BRN, params.SSTNumber, params.IndustryCode,
		params.AddressLine, params.City, params.StateCode, params.Postcode, currency, now,
	)

	org, err := scanOrganization(row)
	if err != nil {
		return Organization{}, fmt.Errorf("creating organization: %w", err)
	}

	s.logger.Info("organization created", "id", org.ID, "name", org.Name)
	return org, nil
}

// Get returns a single organization by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("getting organization %s: %w", id, err)
	}
	return org, nil
}

// List returns all organizations ordered by name.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// Update replaces the profile fields of an existing organization.
// It returns ErrNotFound if the organization does not exist.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Organization, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE organizations
		SET name = $2, tin = $3, brn = $4, sst_number = $5, industry_code = $6,
			address_line = $7, city = $8, state_code = $9, postcode = $10,
			default_currency = $11, updated_at = $12
		WHERE id = $1
		RETURNING `+orgColumns,
		id, params.Name, params.TIN, params.BRN, params.SSTNumber, params.IndustryCode,
		params.AddressLine, params.City, params.StateCode, params.Postcode,
		params.DefaultCurrency, time.Now().UTC(),
	)

	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("updating organization %s: %w", id, err)
	}
	return org, nil
}

// Delete removes an organization and, via cascade, its invoices.
// It returns ErrNotFound if the organization does not exist.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting organization %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("organization deleted", "id", id)
	return nil
}
