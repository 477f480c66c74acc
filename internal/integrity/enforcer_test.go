package integrity

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
)

// idSet is a stand-in collection: exists / referenced by membership.
type idSet map[xid.ID]bool

func (s idSet) has(_ context.Context, id xid.ID) (bool, error) { return s[id], nil }

func TestCheckDelete(t *testing.T) {
	used := xid.New()
	free := xid.New()

	products := idSet{used: true}
	e := NewEnforcer()
	e.RegisterDependent(model.Categories, Dependent{
		Collection: model.Products, Field: "category_id", Referenced: products.has,
	})

	err := e.CheckDelete(context.Background(), model.Categories, used)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrReferenceConflict))
	assert.Equal(t, "Can't DELETE from categories collection, because has reference in other collection(s).", err.Error())

	assert.NoError(t, e.CheckDelete(context.Background(), model.Categories, free))
	assert.NoError(t, e.CheckDelete(context.Background(), model.Orders, used), "no dependents registered")
}

func TestCheckDelete_StopsAtFirstHit(t *testing.T) {
	id := xid.New()
	calls := 0
	e := NewEnforcer()
	e.RegisterDependent(model.Users, Dependent{
		Collection: model.Offers, Field: "user_id",
		Referenced: func(context.Context, xid.ID) (bool, error) { calls++; return true, nil },
	})
	e.RegisterDependent(model.Users, Dependent{
		Collection: model.Orders, Field: "user_id",
		Referenced: func(context.Context, xid.ID) (bool, error) { calls++; return true, nil },
	})

	assert.ErrorIs(t, e.CheckDelete(context.Background(), model.Users, id), apperror.ErrReferenceConflict)
	assert.Equal(t, 1, calls)
}

func TestCheckDelete_LookupError(t *testing.T) {
	boom := errors.New("disk on fire")
	e := NewEnforcer()
	e.RegisterDependent(model.Offers, Dependent{
		Collection: model.Orders, Field: "details.offer_id",
		Referenced: func(context.Context, xid.ID) (bool, error) { return false, boom },
	})

	err := e.CheckDelete(context.Background(), model.Offers, xid.New())
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, apperror.ErrReferenceConflict))
}

func TestCheckReference(t *testing.T) {
	known := xid.New()
	products := idSet{known: true}
	e := NewEnforcer()
	e.RegisterTarget(model.Products, products.has)

	assert.NoError(t, e.CheckReference(context.Background(), "product_id", model.Products, known))

	err := e.CheckReference(context.Background(), "product_id", model.Products, xid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDanglingReference)
	assert.Contains(t, err.Error(), "product_id")
	assert.Contains(t, err.Error(), "products")

	err = e.CheckReference(context.Background(), "offer_id", model.Offers, known)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrDanglingReference), "unregistered target is a wiring bug")
}
