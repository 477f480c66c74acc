package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/validation"
)

type OrderDetailInput struct {
	OfferID  string  `json:"offer_id" validate:"required,entityid"`
	Quantity float64 `json:"quantity" validate:"gte=0,lte=2147483647"`
	Stars    int     `json:"stars" validate:"gte=0,lte=5"`
}

type OrderInput struct {
	OrderDate *Timestamp         `json:"order_date"`
	Details   []OrderDetailInput `json:"details" validate:"required,min=1,dive"`
}

type orderPatch struct {
	OrderDate *Timestamp          `json:"order_date"`
	Details   *[]OrderDetailInput `json:"details" validate:"omitempty,dive"`
}

// OrderService manages orders. Buyers see and change their own orders,
// admins see and change all of them.
type OrderService struct {
	orders   repository.OrderRepository
	refs     *integrity.Enforcer
	validate *validation.Validator
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(orders repository.OrderRepository, refs *integrity.Enforcer, validate *validation.Validator, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, refs: refs, validate: validate, logger: logger, now: time.Now}
}

// List returns every order to an admin and the caller's own orders otherwise.
func (s *OrderService) List(ctx context.Context, caller *auth.Principal) ([]model.Order, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return s.orders.List(ctx)
	}
	return s.orders.ListByUser(ctx, caller.UserID)
}

// Count is the size of the whole orders collection, whoever asks.
func (s *OrderService) Count(ctx context.Context) (int, error) {
	all, err := s.orders.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/orders: counting: %w", err)
	}
	return len(all), nil
}

func (s *OrderService) Get(ctx context.Context, caller *auth.Principal, id xid.ID) (*model.Order, error) {
	return s.accessible(ctx, caller, id)
}

// Create places an order for the caller. Every detail line must point at an
// existing offer.
func (s *OrderService) Create(ctx context.Context, caller *auth.Principal, in OrderInput) (*model.Order, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	// A session can outlive its user record.
	if err := s.refs.CheckReference(ctx, "user_id", model.Users, caller.UserID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	details, err := s.details(ctx, in.Details)
	if err != nil {
		return nil, err
	}

	o := &model.Order{UserID: caller.UserID, OrderDate: s.now().UTC(), Details: details}
	if in.OrderDate != nil {
		o.OrderDate = in.OrderDate.Time
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("service/orders: creating: %w", err)
	}
	s.logger.Info("order created",
		slog.String("orderID", o.ID.String()),
		slog.String("userID", o.UserID.String()),
		slog.Int("lines", len(o.Details)),
	)
	return o, nil
}

// Update changes the date or replaces the detail lines. The buyer is fixed.
func (s *OrderService) Update(ctx context.Context, caller *auth.Principal, id xid.ID, patch integrity.Patch) (*model.Order, error) {
	if err := integrity.OrderGuard.Check(patch); err != nil {
		return nil, err
	}
	o, err := s.accessible(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	var p orderPatch
	if err := patch.Decode(&p); err != nil {
		return nil, apperror.ValidationFailed("body", fmt.Sprintf("Invalid order data: %s", err))
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}
	if p.OrderDate != nil {
		o.OrderDate = p.OrderDate.Time
	}
	if p.Details != nil {
		details, err := s.details(ctx, *p.Details)
		if err != nil {
			return nil, err
		}
		o.Details = details
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("service/orders: updating %s: %w", id, err)
	}
	return o, nil
}

func (s *OrderService) Delete(ctx context.Context, caller *auth.Principal, id xid.ID) error {
	if _, err := s.accessible(ctx, caller, id); err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("order deleted", slog.String("orderID", id.String()))
	return nil
}

// DeleteDetail removes a single line of an order.
func (s *OrderService) DeleteDetail(ctx context.Context, caller *auth.Principal, orderID, detailID xid.ID) (*model.Order, error) {
	if _, err := s.accessible(ctx, caller, orderID); err != nil {
		return nil, err
	}
	if err := s.orders.DeleteDetail(ctx, orderID, detailID); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, orderID)
}

// accessible loads an order the caller owns or, for admins, any order.
func (s *OrderService) accessible(ctx context.Context, caller *auth.Principal, id xid.ID) (*model.Order, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return o, nil
	}
	if err := auth.Authorize(caller, auth.Requirement{Owner: &o.UserID, Kind: "order"}); err != nil {
		return nil, err
	}
	return o, nil
}

// details converts validated input lines, checking each referenced offer.
func (s *OrderService) details(ctx context.Context, in []OrderDetailInput) ([]model.OrderDetail, error) {
	out := make([]model.OrderDetail, 0, len(in))
	for _, d := range in {
		offerID, _ := xid.FromString(d.OfferID)
		if err := s.refs.CheckReference(ctx, "offer_id", model.Offers, offerID); err != nil {
			return nil, err
		}
		out = append(out, model.OrderDetail{
			OfferID:  offerID,
			Quantity: round(d.Quantity),
			Stars:    d.Stars,
		})
	}
	return out, nil
}
