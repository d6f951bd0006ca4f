package repository

import (
	"context"
	"testing"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/dbtest"
	"github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestInsertIfAbsentAndMarkApplied(t *testing.T) {
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	ctx := context.Background()
	repo := Provide()

	charityID := dbtest.SeedCharity(t, db, node, "Shelter")
	wishID := dbtest.SeedWish(t, db, node, charityID, "Blankets", 2000, 5, 10000)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	payment := &domain.Payment{
		ID:         node.Generate(),
		Reference:  "ref-1",
		Gateway:    "paystack",
		WishID:     wishID,
		Quantity:   2,
		UnitPrice:  2000,
		Amount:     4000,
		DonorEmail: "donor@example.com",
		Metadata:   datatypes.JSONMap{"item_id": "42", "quantity": "2"},
		PaidAt:     now,
		CreatedAt:  now,
	}
	inserted, err := repo.InsertIfAbsent(ctx, db, payment)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := *payment
	again.ID = node.Generate()
	inserted, err = repo.InsertIfAbsent(ctx, db, &again)
	require.NoError(t, err)
	assert.False(t, inserted, "reference is unique")
	assert.Equal(t, int64(1), dbtest.Count(t, db, "payments"))

	pending, err := repo.ListUnapplied(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, payment.ID, pending[0].ID)

	marked, err := repo.MarkApplied(ctx, db, payment.ID, now)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkApplied(ctx, db, payment.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, marked, "applied only once")

	found, err := repo.FindByReference(ctx, db, "ref-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Applied())
	assert.Equal(t, "42", found.Metadata["item_id"])

	missing, err := repo.FindByReference(ctx, db, "ref-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	pending, err = repo.ListUnapplied(ctx, db, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	views, err := repo.List(ctx, db, nil, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Blankets", views[0].WishName)
	assert.Equal(t, "Shelter", views[0].CharityName)
}
