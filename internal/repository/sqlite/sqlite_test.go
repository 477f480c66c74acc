package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/session"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only during the test.
// t.Helper() makes failures point at the caller's line.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test db")
	t.Cleanup(func() { db.Close() })
	return db
}

// fixture is a minimal consistent catalog: one user, category, product, offer.
type fixture struct {
	user     *model.User
	category *model.Category
	product  *model.Product
	offer    *model.Offer
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	u := &model.User{Name: "kiss.janos", Email: "kiss.janos@jedlik.eu", PasswordHash: "x",
		Roles: []string{model.RoleUser, model.RoleSP}}
	require.NoError(t, db.Users().Create(ctx, u))

	c := &model.Category{CategoryName: "Alma", MainCategory: "Gyümölcs"}
	require.NoError(t, db.Categories().Create(ctx, c))

	p := &model.Product{CategoryID: c.ID, ProductName: "Jonatán alma"}
	require.NoError(t, db.Products().Create(ctx, p))

	o := &model.Offer{UserID: u.ID, ProductID: p.ID, OfferStart: time.Now().Add(-time.Hour),
		Unit: "kg", UnitPrice: 450, Quantity: 10, Info: "Friss szilva és alma"}
	require.NoError(t, db.Offers().Create(ctx, o))

	return fixture{user: u, category: c, product: p, offer: o}
}

// =========================================================================
// USERS
// =========================================================================

func TestUsers_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	got, err := db.Users().GetByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, got.Email)
	assert.Equal(t, []string{model.RoleUser, model.RoleSP}, got.Roles)
	assert.False(t, got.CreatedAt.IsZero())

	byEmail, err := db.Users().GetByEmail(ctx, "kiss.janos@jedlik.eu")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, byEmail.ID)

	_, err = db.Users().GetByEmail(ctx, "nobody@jedlik.eu")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	err := db.Users().Create(context.Background(), &model.User{
		Name: "other", Email: "kiss.janos@jedlik.eu", PasswordHash: "x",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDuplicate)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "email", appErr.Field)
}

func TestUsers_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	f.user.EmailVerified = true
	f.user.Roles = []string{model.RoleAdmin}
	require.NoError(t, db.Users().Update(ctx, f.user))

	got, err := db.Users().GetByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, []string{model.RoleAdmin}, got.Roles)

	require.NoError(t, db.Users().Delete(ctx, f.user.ID))
	assert.ErrorIs(t, db.Users().Delete(ctx, f.user.ID), apperror.ErrNotFound)

	missing := &model.User{ID: xid.New(), Name: "ghost", Email: "ghost@x.hu"}
	assert.ErrorIs(t, db.Users().Update(ctx, missing), apperror.ErrNotFound)
}

// =========================================================================
// CATALOG
// =========================================================================

func TestCategories_Unique(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	err := db.Categories().Create(context.Background(), &model.Category{
		CategoryName: "Alma", MainCategory: "Másik",
	})
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
}

func TestProducts_ReferencesCategory(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	found, err := db.Products().ReferencesCategory(ctx, f.category.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = db.Products().ReferencesCategory(ctx, xid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

// =========================================================================
// OFFERS
// =========================================================================

func TestOffers_UpdateTouchesMutableColumnsOnly(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	end := time.Now().Add(24 * time.Hour)
	changed := *f.offer
	changed.UnitPrice = 1
	changed.Unit = "db"
	changed.Quantity = 3
	changed.OfferEnd = &end
	require.NoError(t, db.Offers().Update(ctx, &changed))

	got, err := db.Offers().GetByID(ctx, f.offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 450, got.UnitPrice)
	assert.Equal(t, "kg", got.Unit)
	assert.Equal(t, 3, got.Quantity)
	require.NotNil(t, got.OfferEnd)
	assert.WithinDuration(t, end, *got.OfferEnd, time.Second)
}

func TestOffers_Views(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	views, err := db.Offers().Views(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, f.offer.ID, v.ID)
	assert.Equal(t, "Jonatán alma", v.Product.ProductName)
	assert.Equal(t, "Gyümölcs", v.Category.MainCategory)
	assert.Equal(t, "kiss.janos@jedlik.eu", v.Owner.Email)
	assert.Equal(t, f.user.ID, v.UserID)
	assert.Nil(t, v.OfferEnd)

	mine, err := db.Offers().ViewsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := db.Offers().ViewsByUser(ctx, xid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =========================================================================
// ORDERS
// =========================================================================

func TestOrders_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	o := &model.Order{UserID: f.user.ID, OrderDate: time.Now(), Details: []model.OrderDetail{
		{OfferID: f.offer.ID, Quantity: 2, Stars: 5},
		{OfferID: f.offer.ID, Quantity: 1},
	}}
	require.NoError(t, db.Orders().Create(ctx, o))
	require.False(t, o.Details[0].ID.IsNil())

	got, err := db.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Details, 2)
	assert.Equal(t, 5, got.Details[0].Stars, "position preserved")

	referenced, err := db.Orders().ReferencesOffer(ctx, f.offer.ID)
	require.NoError(t, err)
	assert.True(t, referenced)

	require.NoError(t, db.Orders().DeleteDetail(ctx, o.ID, o.Details[0].ID))
	err = db.Orders().DeleteDetail(ctx, o.ID, o.Details[0].ID)
	require.Error(t, err)
	assert.Equal(t, "Order detail with id "+o.Details[0].ID.String()+" not found", err.Error())

	got.Details = []model.OrderDetail{{OfferID: f.offer.ID, Quantity: 7}}
	require.NoError(t, db.Orders().Update(ctx, got))

	mine, err := db.Orders().ListByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Len(t, mine[0].Details, 1)
	assert.Equal(t, 7, mine[0].Details[0].Quantity)

	require.NoError(t, db.Orders().Delete(ctx, o.ID))
	referenced, err = db.Orders().ReferencesOffer(ctx, f.offer.ID)
	require.NoError(t, err)
	assert.False(t, referenced, "details removed with the order")

	_, err = db.Orders().GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.Sessions()

	require.NoError(t, s.Put(ctx, "live", []byte("a"), time.Now().Add(time.Hour)))
	require.NoError(t, s.Put(ctx, "live", []byte("b"), time.Now().Add(time.Hour)))
	require.NoError(t, s.Put(ctx, "stale", []byte("c"), time.Now().Add(-time.Second)))

	data, err := s.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data, "last write wins")

	_, err = s.Get(ctx, "stale")
	assert.ErrorIs(t, err, session.ErrNotFound)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Delete(ctx, "live"))
	_, err = s.Get(ctx, "live")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
