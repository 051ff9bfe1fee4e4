package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-core/internal/domain"
)

func TestCustomerRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository(testDB)

	email := "ada@example.com"
	now := time.Now()
	customer := &domain.Customer{ID: uuid.New(), Name: "Ada Lovelace", Email: &email, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, customer))

	found, err := repo.List(ctx, "lovelace", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, customer.ID, found[0].ID)

	customer.LoyaltyPoints = 42
	require.NoError(t, repo.Update(ctx, customer))
	got, err := repo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.LoyaltyPoints)
	assert.Nil(t, got.Phone)

	require.NoError(t, repo.Delete(ctx, customer.ID))
	_, err = repo.FindByID(ctx, customer.ID)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, customer.ID), ErrCustomerNotFound)
}
