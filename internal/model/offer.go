package model

import (
	"time"

	"github.com/rs/xid"
)

// Offer is a seller's listing of a product at a unit price.
//
// UserID, ProductID, OfferStart, Unit, UnitPrice and Info are fixed once the
// offer exists; only OfferEnd, Quantity and PictureURL may change afterwards.
// Prices and quantities are whole numbers.
type Offer struct {
	ID         xid.ID     `json:"_id"`
	UserID     xid.ID     `json:"user_id"`
	ProductID  xid.ID     `json:"product_id"`
	OfferStart time.Time  `json:"offer_start"`
	OfferEnd   *time.Time `json:"offer_end"`
	Unit       string     `json:"unit"`
	UnitPrice  int        `json:"unit_price"`
	Quantity   int        `json:"quantity"`
	PictureURL string     `json:"picture_url,omitempty"`
	Info       string     `json:"info,omitempty"`
}

// OfferView is the joined read model behind the offer listings:
// offer ⋈ product ⋈ category ⋈ owner.
//
// The owner summary is serialized under the "offer" key; existing clients read
// `offer.name` / `offer.email` from the listing.
type OfferView struct {
	ID         xid.ID          `json:"_id"`
	OfferStart time.Time       `json:"offer_start"`
	OfferEnd   *time.Time      `json:"offer_end"`
	Unit       string          `json:"unit"`
	UnitPrice  int             `json:"unit_price"`
	PictureURL string          `json:"picture_url,omitempty"`
	Quantity   int             `json:"quantity"`
	Info       string          `json:"info,omitempty"`
	Product    ProductSummary  `json:"product"`
	Category   CategorySummary `json:"category"`
	Owner      OwnerSummary    `json:"offer"`

	UserID xid.ID `json:"-"`
}

// ActiveAt reports whether the offer can still be ordered at t: something is
// left and the offer has not ended.
func (v *OfferView) ActiveAt(t time.Time) bool {
	return v.Quantity > 0 && (v.OfferEnd == nil || !v.OfferEnd.Before(t))
}

type ProductSummary struct {
	ProductName string `json:"product_name"`
	PictureURL  string `json:"picture_url,omitempty"`
}

type CategorySummary struct {
	CategoryName string `json:"category_name"`
	MainCategory string `json:"main_category"`
}

type OwnerSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
