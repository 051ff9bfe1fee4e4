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
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category with this name already exists")
)

// CategoryRepository stores the product category tree.
type CategoryRepository interface {
	WithDB(db database.DBTX) CategoryRepository
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

const categoryColumns = `id, name, parent_id, created_at`

type categoryRepository struct {
	db database.DBTX
}

func NewCategoryRepository(db database.DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) WithDB(db database.DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func scanCategory(row interface{ Scan(...any) error }) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a category. Names are unique across the whole tree.
func (r *categoryRepository) Create(ctx context.Context, c *domain.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.ParentID, c.CreatedAt)
	switch {
	case database.IsUniqueViolation(err, "categories_name_key"):
		return ErrCategoryExists
	case err != nil:
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	out := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}
