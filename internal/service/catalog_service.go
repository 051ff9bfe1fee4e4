package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

// CatalogService manages products, categories and tax rates. Every
// mutation is audited in the same transaction.
type CatalogService interface {
	LookupProduct(ctx context.Context, code string) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	CreateProduct(ctx context.Context, actorID *uuid.UUID, product *domain.Product) error
	UpdateProduct(ctx context.Context, actorID *uuid.UUID, product *domain.Product) error
	DeactivateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, actorID *uuid.UUID, category *domain.Category) error
	ListTaxRates(ctx context.Context) ([]*domain.TaxRate, error)
	CreateTaxRate(ctx context.Context, actorID *uuid.UUID, rate *domain.TaxRate) error
}

type catalogService struct {
	tx         database.Transactor
	products   repository.ProductRepository
	categories repository.CategoryRepository
	taxRates   repository.TaxRateRepository
	audit      AuditTrail
	logger     *zap.Logger
	now        func() time.Time
}

func NewCatalogService(
	tx database.Transactor,
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	taxRates repository.TaxRateRepository,
	audit AuditTrail,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		tx:         tx,
		products:   products,
		categories: categories,
		taxRates:   taxRates,
		audit:      audit,
		logger:     logger.Named("catalog"),
		now:        time.Now,
	}
}

func (s *catalogService) LookupProduct(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrItemNotFound
	}
	product, err := s.products.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	return s.products.List(ctx, filter)
}

func validateProduct(p *domain.Product) error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.Barcode != nil {
		code := strings.TrimSpace(*p.Barcode)
		if code == "" {
			p.Barcode = nil
		} else {
			p.Barcode = &code
		}
	}
	if p.SKU == "" || p.Name == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	if p.Cost != nil && p.Cost.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, actorID *uuid.UUID, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	now := s.now().UTC()
	product.ID = uuid.New()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.tx.WithTx(ctx, func(q database.DBTX) error {
		if err := s.products.WithDB(q).Create(ctx, product); err != nil {
			return mapProductError(err)
		}
		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionProductCreate,
			EntityType: "product",
			EntityID:   product.ID.String(),
			After:      product,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("product created", zap.String("sku", product.SKU))
	return nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, actorID *uuid.UUID, product *domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		products := s.products.WithDB(q)

		before, err := products.FindByID(ctx, product.ID)
		if err != nil {
			return mapProductError(err)
		}
		if err := products.Update(ctx, product); err != nil {
			return mapProductError(err)
		}
		product.CreatedAt = before.CreatedAt

		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionProductUpdate,
			EntityType: "product",
			EntityID:   product.ID.String(),
			Before:     before,
			After:      product,
		})
	})
}

// DeactivateProduct hides the product from checkout lookups. Sale lines
// keep referencing it.
func (s *catalogService) DeactivateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		products := s.products.WithDB(q)

		before, err := products.FindByID(ctx, id)
		if err != nil {
			return mapProductError(err)
		}
		if err := products.Deactivate(ctx, id); err != nil {
			return mapProductError(err)
		}
		after := *before
		after.Active = false

		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionProductDeactivate,
			EntityType: "product",
			EntityID:   id.String(),
			Before:     before,
			After:      after,
		})
	})
}

func mapProductError(err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrProductSKUExists):
		return ErrDuplicateSKU
	case errors.Is(err, repository.ErrProductBarcodeExists):
		return ErrDuplicateCode
	}
	return err
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, actorID *uuid.UUID, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return ErrInvalidCategory
	}
	category.ID = uuid.New()
	category.CreatedAt = s.now().UTC()

	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		categories := s.categories.WithDB(q)
		if category.ParentID != nil {
			if _, err := categories.FindByID(ctx, *category.ParentID); err != nil {
				if errors.Is(err, repository.ErrCategoryNotFound) {
					return ErrInvalidCategory
				}
				return err
			}
		}
		if err := categories.Create(ctx, category); err != nil {
			if errors.Is(err, repository.ErrCategoryExists) {
				return ErrCategoryExists
			}
			return err
		}
		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionCategoryCreate,
			EntityType: "category",
			EntityID:   category.ID.String(),
			After:      category,
		})
	})
}

func (s *catalogService) ListTaxRates(ctx context.Context) ([]*domain.TaxRate, error) {
	return s.taxRates.List(ctx)
}

func (s *catalogService) CreateTaxRate(ctx context.Context, actorID *uuid.UUID, rate *domain.TaxRate) error {
	rate.Name = strings.TrimSpace(rate.Name)
	if rate.Name == "" || rate.Rate.IsNegative() {
		return ErrInvalidTaxRate
	}
	rate.ID = uuid.New()

	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		if err := s.taxRates.WithDB(q).Create(ctx, rate); err != nil {
			if errors.Is(err, repository.ErrTaxRateExists) {
				return ErrTaxRateExists
			}
			return err
		}
		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionTaxRateCreate,
			EntityType: "tax_rate",
			EntityID:   rate.ID.String(),
			After:      rate,
		})
	})
}
