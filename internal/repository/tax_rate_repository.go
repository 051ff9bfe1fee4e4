package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pos-core/internal/database"
	"pos-core/internal/domain"
)

var (
	ErrTaxRateNotFound = errors.New("tax rate not found")
	ErrTaxRateExists   = errors.New("tax rate with this name already exists")
)

type TaxRateRepository interface {
	WithDB(db database.DBTX) TaxRateRepository
	Create(ctx context.Context, rate *domain.TaxRate) error
	List(ctx context.Context) ([]*domain.TaxRate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.TaxRate, error)
}

type taxRateRepository struct {
	db database.DBTX
}

func NewTaxRateRepository(db database.DBTX) TaxRateRepository {
	return &taxRateRepository{db: db}
}

func (r *taxRateRepository) WithDB(db database.DBTX) TaxRateRepository {
	return &taxRateRepository{db: db}
}

func (r *taxRateRepository) Create(ctx context.Context, rate *domain.TaxRate) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tax_rates (id, name, rate) VALUES ($1, $2, $3)`, rate.ID, rate.Name, rate.Rate)
	if err != nil {
		if database.IsUniqueViolation(err, "tax_rates_name_key") {
			return ErrTaxRateExists
		}
		return fmt.Errorf("failed to create tax rate: %w", err)
	}
	return nil
}

func (r *taxRateRepository) List(ctx context.Context) ([]*domain.TaxRate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, rate FROM tax_rates ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax rates: %w", err)
	}
	defer rows.Close()

	rates := []*domain.TaxRate{}
	for rows.Next() {
		rate := &domain.TaxRate{}
		if err := rows.Scan(&rate.ID, &rate.Name, &rate.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan tax rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax rates: %w", err)
	}
	return rates, nil
}

func (r *taxRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.TaxRate, error) {
	rate := &domain.TaxRate{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, rate FROM tax_rates WHERE id = $1`, id).
		Scan(&rate.ID, &rate.Name, &rate.Rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaxRateNotFound
		}
		return nil, fmt.Errorf("failed to find tax rate by ID: %w", err)
	}
	return rate, nil
}
