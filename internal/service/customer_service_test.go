package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-core/internal/domain"
)

func TestCustomerService_Lifecycle(t *testing.T) {
	store := newMemStore()
	svc := NewCustomerService(&mockTransactor{store: store}, &mockCustomerRepository{store}, NewAuditTrail(&mockAuditRepository{store}))
	ctx := context.Background()
	actor := uuid.New()

	email := "  ana@example.com "
	blank := "   "
	customer := &domain.Customer{Name: " Ana ", Email: &email, Phone: &blank}
	require.NoError(t, svc.Create(ctx, &actor, customer))
	assert.Equal(t, "Ana", customer.Name)
	assert.Equal(t, "ana@example.com", *customer.Email)
	assert.Nil(t, customer.Phone)

	customer.LoyaltyPoints = 12
	require.NoError(t, svc.Update(ctx, &actor, customer))

	got, err := svc.Get(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.LoyaltyPoints)

	list, err := svc.List(ctx, "an", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, &actor, customer.ID))
	_, err = svc.Get(ctx, customer.ID)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, &actor, customer.ID), ErrCustomerNotFound)

	assert.Equal(t, []string{domain.ActionCustomerCreate, domain.ActionCustomerUpdate, domain.ActionCustomerDelete}, store.auditActions())
}

func TestCustomerService_RejectsInvalid(t *testing.T) {
	store := newMemStore()
	svc := NewCustomerService(&mockTransactor{store: store}, &mockCustomerRepository{store}, NewAuditTrail(&mockAuditRepository{store}))

	assert.ErrorIs(t, svc.Create(context.Background(), nil, &domain.Customer{Name: ""}), ErrInvalidCustomer)
	assert.ErrorIs(t, svc.Create(context.Background(), nil, &domain.Customer{Name: "Bo", LoyaltyPoints: -1}), ErrInvalidCustomer)
	assert.Empty(t, store.customers)
}
