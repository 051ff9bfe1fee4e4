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

var ErrLocationNotFound = errors.New("location not found")

type LocationRepository interface {
	Create(ctx context.Context, location *domain.Location) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Location, error)
	FindByName(ctx context.Context, name string) (*domain.Location, error)
}

type locationRepository struct {
	db database.DBTX
}

func NewLocationRepository(db database.DBTX) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(ctx context.Context, location *domain.Location) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO inventory_locations (id, name) VALUES ($1, $2)`, location.ID, location.Name)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (r *locationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	return r.findOne(ctx, `SELECT id, name FROM inventory_locations WHERE id = $1`, id)
}

func (r *locationRepository) FindByName(ctx context.Context, name string) (*domain.Location, error) {
	return r.findOne(ctx, `SELECT id, name FROM inventory_locations WHERE name = $1`, name)
}

func (r *locationRepository) findOne(ctx context.Context, query string, arg any) (*domain.Location, error) {
	location := &domain.Location{}
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&location.ID, &location.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return location, nil
}
