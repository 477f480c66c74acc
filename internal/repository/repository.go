// Package repository declares the storage contracts the services depend on.
//
// Each collection has its own interface so a service only receives the
// collections it actually touches. The sqlite package implements all of them.
// Missing records are reported as apperror.ErrNotFound, unique violations as
// apperror.ErrDuplicate.
package repository

import (
	"context"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id xid.ID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id xid.ID) error
	Exists(ctx context.Context, id xid.ID) (bool, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id xid.ID) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id xid.ID) error
	Exists(ctx context.Context, id xid.ID) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id xid.ID) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id xid.ID) error
	Exists(ctx context.Context, id xid.ID) (bool, error)
	ReferencesCategory(ctx context.Context, categoryID xid.ID) (bool, error)
}

type OfferRepository interface {
	Create(ctx context.Context, o *model.Offer) error
	GetByID(ctx context.Context, id xid.ID) (*model.Offer, error)
	List(ctx context.Context) ([]model.Offer, error)
	Update(ctx context.Context, o *model.Offer) error
	Delete(ctx context.Context, id xid.ID) error
	Exists(ctx context.Context, id xid.ID) (bool, error)
	ReferencesUser(ctx context.Context, userID xid.ID) (bool, error)
	ReferencesProduct(ctx context.Context, productID xid.ID) (bool, error)

	// Views returns the joined read model of every offer, oldest first.
	Views(ctx context.Context) ([]model.OfferView, error)
	// ViewsByUser restricts Views to one owner.
	ViewsByUser(ctx context.Context, userID xid.ID) ([]model.OfferView, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id xid.ID) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	ListByUser(ctx context.Context, userID xid.ID) ([]model.Order, error)
	// Update rewrites the order date and replaces all detail lines.
	Update(ctx context.Context, o *model.Order) error
	Delete(ctx context.Context, id xid.ID) error
	DeleteDetail(ctx context.Context, orderID, detailID xid.ID) error
	ReferencesUser(ctx context.Context, userID xid.ID) (bool, error)
	ReferencesOffer(ctx context.Context, offerID xid.ID) (bool, error)
}
