package service

import (
	"context"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/validation"
)

type CartInput struct {
	OfferID  string  `json:"offer_id" validate:"required,entityid"`
	Quantity float64 `json:"quantity" validate:"gt=0,lte=2147483647"`
}

// CartService edits the shopping cart kept in the caller's session. It never
// writes storage; the handler saves the returned cart back into the session.
type CartService struct {
	offers   repository.OfferRepository
	validate *validation.Validator
}

func NewCartService(offers repository.OfferRepository, validate *validation.Validator) *CartService {
	return &CartService{offers: offers, validate: validate}
}

// Add puts an existing offer into cart. Adding the same offer again raises
// its quantity.
func (s *CartService) Add(ctx context.Context, cart []model.CartItem, in CartInput) ([]model.CartItem, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	offerID, _ := xid.FromString(in.OfferID)
	if _, err := s.offers.GetByID(ctx, offerID); err != nil {
		return nil, err
	}

	qty := round(in.Quantity)
	out := make([]model.CartItem, len(cart), len(cart)+1)
	copy(out, cart)
	for i := range out {
		if out[i].OfferID == offerID {
			out[i].Quantity += qty
			return out, nil
		}
	}
	return append(out, model.CartItem{OfferID: offerID, Quantity: qty}), nil
}
