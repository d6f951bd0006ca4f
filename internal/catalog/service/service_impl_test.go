package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/catalog/repository"
	catalogservice "github.com/lgndcraft2/giving-tree/internal/catalog/service"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/dbtest"
	"github.com/lgndcraft2/giving-tree/pkg/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCatalog(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	svc := catalogservice.New(catalogservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Rules: config.NewStaticCatalogRules(config.DefaultCatalogRules()),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func wish(title string, unit string, qty int64) domain.WishInput {
	return domain.WishInput{
		Title:       title,
		Description: title + " for the winter",
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(unit),
	}
}

func charityInput(name string, wishes ...domain.WishInput) domain.CharityInput {
	return domain.CharityInput{
		Name:        name,
		Description: "Helps people",
		Website:     "https://example.org",
		LogoURL:     "https://example.org/logo.png",
		ImageURL:    "https://example.org/image.png",
		Active:      true,
		Wishes:      wishes,
	}
}

func createShelter(t *testing.T, svc domain.Service) domain.CharityWithWishes {
	t.Helper()
	withTotal := wish("Heaters", "150.00", 2)
	withTotal.TotalPrice = decimal.NewNullDecimal(decimal.RequireFromString("250"))

	created, err := svc.CreateCharity(context.Background(), domain.CreateCharityRequest{
		CharityInput: charityInput("Warm Shelter", wish("Blankets", "20.00", 5), wish("Coats", "45.50", 4), withTotal),
	})
	require.NoError(t, err)
	return created
}

func TestCreateCharityWithWishes(t *testing.T) {
	svc, _ := newCatalog(t)
	ctx := context.Background()

	created := createShelter(t, svc)
	assert.Equal(t, "warm-shelter", created.Charity.Slug)
	require.Len(t, created.Wishes, 3)
	assert.Equal(t, int64(10000), created.Wishes[0].TargetAmount)
	assert.Equal(t, int64(18200), created.Wishes[1].TargetAmount)
	assert.Equal(t, int64(25000), created.Wishes[2].TargetAmount, "explicit total wins")

	charities, err := svc.ListCharities(ctx)
	require.NoError(t, err)
	require.Len(t, charities, 1)
	assert.Equal(t, int64(3), charities[0].WishCount)

	wishes, err := svc.ListWishes(ctx)
	require.NoError(t, err)
	require.Len(t, wishes, 3)
	for _, w := range wishes {
		assert.Equal(t, "Warm Shelter", w.CharityName)
	}

	got, err := svc.FindWishByID(ctx, created.Wishes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Blankets", got.Name)
	assert.Zero(t, got.CurrentAmount)
}

func TestCreateCharityCollectsValidationErrors(t *testing.T) {
	svc, db := newCatalog(t)

	bad := wish("", "0", 0)
	_, err := svc.CreateCharity(context.Background(), domain.CreateCharityRequest{
		CharityInput: domain.CharityInput{Name: "Only Name", Wishes: []domain.WishInput{bad}},
	})
	require.Error(t, err)

	verr, ok := validation.As(err)
	require.True(t, ok)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Code
	}
	assert.Equal(t, "required", fields["description"])
	assert.Equal(t, "required", fields["website"])
	assert.Equal(t, "count_out_of_range", fields["wishes"])
	assert.Equal(t, "required", fields["wishes[0].title"])
	assert.Equal(t, "invalid", fields["wishes[0].quantity"])
	assert.Equal(t, "invalid", fields["wishes[0].unit_price"])
	assert.NotContains(t, fields, "name")

	assert.Zero(t, dbtest.Count(t, db, "charities"))
}

func TestCreateCharityRejectsDuplicateName(t *testing.T) {
	svc, db := newCatalog(t)
	createShelter(t, svc)

	_, err := svc.CreateCharity(context.Background(), domain.CreateCharityRequest{
		CharityInput: charityInput("Warm Shelter", wish("A", "1", 1), wish("B", "1", 1), wish("C", "1", 1)),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCharity)
	assert.Equal(t, int64(3), dbtest.Count(t, db, "wishes"))
}

func TestUpdateCharityReplacesWishSet(t *testing.T) {
	svc, db := newCatalog(t)
	ctx := context.Background()
	created := createShelter(t, svc)

	keep := created.Wishes[0]
	require.NoError(t, db.Exec(`UPDATE wishes SET current_amount = 9000 WHERE id = ?`, keep.ID).Error)

	edited := wish("Wool Blankets", "15.00", 6)
	edited.ID = json.Number(keep.ID.String())
	third := wish("Heaters", "100", 1)
	third.ID = json.Number(created.Wishes[2].ID.String())

	updated, err := svc.UpdateCharity(ctx, domain.UpdateCharityRequest{
		ID:           json.Number(created.Charity.ID.String()),
		CharityInput: charityInput("Warm Shelter North", edited, third, wish("Soup", "5", 10)),
	})
	require.NoError(t, err)
	assert.Equal(t, "warm-shelter-north", updated.Charity.Slug)
	require.Len(t, updated.Wishes, 3)

	got, err := svc.FindWishByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wool Blankets", got.Name)
	assert.Equal(t, int64(9000), got.TargetAmount)
	assert.Equal(t, int64(9000), got.CurrentAmount, "ledger total is kept")
	assert.True(t, got.Fulfilled)

	_, err = svc.FindWishByID(ctx, created.Wishes[1].ID)
	assert.ErrorIs(t, err, domain.ErrWishNotFound, "omitted wish is deleted")
	assert.Equal(t, int64(3), dbtest.Count(t, db, "wishes"))
}

func TestUpdateCharityKeepsWishesWithPayments(t *testing.T) {
	svc, db := newCatalog(t)
	ctx := context.Background()
	created := createShelter(t, svc)

	paid := created.Wishes[1]
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO payments (id, reference, gateway, wish_id, quantity, unit_price, amount, donor_email, paid_at, applied_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snowflake.ID(1), "ref-1", "paystack", paid.ID, 1, 4550, 4550, "d@example.com", now, now, now,
	).Error)

	first := wish("Blankets", "20.00", 5)
	first.ID = json.Number(created.Wishes[0].ID.String())
	_, err := svc.UpdateCharity(ctx, domain.UpdateCharityRequest{
		ID:           json.Number(created.Charity.ID.String()),
		CharityInput: charityInput("Renamed", first, wish("X", "1", 1), wish("Y", "1", 1)),
	})
	assert.ErrorIs(t, err, domain.ErrWishHasPayments)

	_, err = svc.FindWishByID(ctx, paid.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), dbtest.Count(t, db, "wishes"), "nothing is written")
	charity, err := svc.GetCharity(ctx, created.Charity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Warm Shelter", charity.Charity.Name)
}

func TestUpdateCharityRejectsForeignWish(t *testing.T) {
	svc, _ := newCatalog(t)
	ctx := context.Background()
	shelter := createShelter(t, svc)
	other, err := svc.CreateCharity(ctx, domain.CreateCharityRequest{
		CharityInput: charityInput("Food Bank", wish("Rice", "3", 10), wish("Beans", "2", 10), wish("Oil", "4", 5)),
	})
	require.NoError(t, err)

	stolen := wish("Rice", "3", 10)
	stolen.ID = json.Number(other.Wishes[0].ID.String())
	_, err = svc.UpdateCharity(ctx, domain.UpdateCharityRequest{
		ID:           json.Number(shelter.Charity.ID.String()),
		CharityInput: charityInput("Warm Shelter", stolen, wish("X", "1", 1), wish("Y", "1", 1)),
	})
	assert.ErrorIs(t, err, domain.ErrWishNotOwned)

	_, err = svc.UpdateCharity(ctx, domain.UpdateCharityRequest{
		ID:           "nope",
		CharityInput: charityInput("Warm Shelter", wish("X", "1", 1), wish("Y", "1", 1), wish("Z", "1", 1)),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestToggleCharityStatus(t *testing.T) {
	svc, _ := newCatalog(t)
	ctx := context.Background()
	created := createShelter(t, svc)

	toggled, err := svc.ToggleCharityStatus(ctx, created.Charity.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	toggled, err = svc.ToggleCharityStatus(ctx, created.Charity.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)

	_, err = svc.ToggleCharityStatus(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrCharityNotFound)
}

func TestFindWishByIDUnknown(t *testing.T) {
	svc, _ := newCatalog(t)

	_, err := svc.FindWishByID(context.Background(), snowflake.ID(99))
	assert.ErrorIs(t, err, domain.ErrWishNotFound)

	_, err = svc.FindWishByID(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrWishNotFound)
}
