package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pos-core/internal/database"
	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

type CustomerService interface {
	List(ctx context.Context, query string, limit int) ([]*domain.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	Create(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error
	Update(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error
	Delete(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
}

type customerService struct {
	tx        database.Transactor
	customers repository.CustomerRepository
	audit     AuditTrail
	now       func() time.Time
}

func NewCustomerService(tx database.Transactor, customers repository.CustomerRepository, audit AuditTrail) CustomerService {
	return &customerService{tx: tx, customers: customers, audit: audit, now: time.Now}
}

func (s *customerService) List(ctx context.Context, query string, limit int) ([]*domain.Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.customers.List(ctx, strings.TrimSpace(query), limit)
}

func (s *customerService) Get(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, mapCustomerError(err)
	}
	return customer, nil
}

func normalizeCustomer(c *domain.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || c.LoyaltyPoints < 0 {
		return ErrInvalidCustomer
	}
	c.Email = trimOptional(c.Email)
	c.Phone = trimOptional(c.Phone)
	return nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *customerService) Create(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error {
	if err := normalizeCustomer(customer); err != nil {
		return err
	}
	now := s.now().UTC()
	customer.ID = uuid.New()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		if err := s.customers.WithDB(q).Create(ctx, customer); err != nil {
			return err
		}
		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionCustomerCreate,
			EntityType: "customer",
			EntityID:   customer.ID.String(),
			After:      customer,
		})
	})
}

func (s *customerService) Update(ctx context.Context, actorID *uuid.UUID, customer *domain.Customer) error {
	if err := normalizeCustomer(customer); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		customers := s.customers.WithDB(q)

		before, err := customers.FindByID(ctx, customer.ID)
		if err != nil {
			return mapCustomerError(err)
		}
		if err := customers.Update(ctx, customer); err != nil {
			return mapCustomerError(err)
		}
		customer.CreatedAt = before.CreatedAt

		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionCustomerUpdate,
			EntityType: "customer",
			EntityID:   customer.ID.String(),
			Before:     before,
			After:      customer,
		})
	})
}

// Delete removes the customer. Past sales keep their totals and lose the
// customer reference.
func (s *customerService) Delete(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(q database.DBTX) error {
		customers := s.customers.WithDB(q)

		before, err := customers.FindByID(ctx, id)
		if err != nil {
			return mapCustomerError(err)
		}
		if err := customers.Delete(ctx, id); err != nil {
			return mapCustomerError(err)
		}

		return s.audit.Record(ctx, q, AuditRecord{
			ActorID:    actorID,
			Action:     domain.ActionCustomerDelete,
			EntityType: "customer",
			EntityID:   id.String(),
			Before:     before,
		})
	})
}

func mapCustomerError(err error) error {
	if errors.Is(err, repository.ErrCustomerNotFound) {
		return ErrCustomerNotFound
	}
	return fmt.Errorf("customer store: %w", err)
}
