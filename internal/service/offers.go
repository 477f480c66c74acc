package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/tidwall/gjson"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/validation"
)

// Timestamp accepts RFC 3339 timestamps as well as plain dates ("2024-05-01").
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a date string: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("%q is not a date", s)
}

type OfferInput struct {
	ProductID  string     `json:"product_id" validate:"required,entityid"`
	OfferStart *Timestamp `json:"offer_start"`
	OfferEnd   *Timestamp `json:"offer_end"`
	Unit       string     `json:"unit" validate:"required,max=20"`
	UnitPrice  *float64   `json:"unit_price" validate:"required,gte=0,lte=2147483647"`
	Quantity   float64    `json:"quantity" validate:"gte=0,lte=2147483647"`
	PictureURL string     `json:"picture_url" validate:"omitempty,url"`
	Info       string     `json:"info" validate:"max=1000"`
}

// offerPatch carries the fields an offer may change after creation.
// offer_end is handled separately because null clears it.
type offerPatch struct {
	Quantity   *float64 `json:"quantity" validate:"omitempty,gte=0,lte=2147483647"`
	PictureURL *string  `json:"picture_url" validate:"omitempty,url"`
}

// searchPaths are the joined-view fields the listing filter looks at.
var searchPaths = []string{
	"info",
	"product.product_name",
	"category.category_name",
	"category.main_category",
	"offer.name",
	"offer.email",
}

// PageQuery selects a window of the joined offer listing.
type PageQuery struct {
	Offset     int
	Limit      int    // window size; 0 yields an empty window
	SortField  string // gjson path, leading "-" sorts descending
	Filter     string // case-insensitive regex, "*" matches everything
	ActiveOnly bool
}

// ParsePageQuery reads the path segments of the paginated listing.
func ParsePageQuery(offset, limit, sortField, filter string, active bool) (PageQuery, error) {
	off, err := strconv.Atoi(offset)
	if err != nil || off < 0 {
		return PageQuery{}, apperror.ValidationFailed("offset", fmt.Sprintf("offset: %q is not a non-negative number", offset))
	}
	lim, err := strconv.Atoi(limit)
	if err != nil || lim < 0 {
		return PageQuery{}, apperror.ValidationFailed("limit", fmt.Sprintf("limit: %q is not a non-negative number", limit))
	}
	return PageQuery{Offset: off, Limit: lim, SortField: sortField, Filter: filter, ActiveOnly: active}, nil
}

// Page is one window of the listing plus the size of the whole match.
type Page struct {
	Items []model.OfferView
	Total int
}

// OfferService manages offers: sellers publish them, admins curate them.
//
// unit_price and quantity arrive as JSON numbers and are rounded to whole
// units before they are stored.
type OfferService struct {
	offers   repository.OfferRepository
	refs     *integrity.Enforcer
	validate *validation.Validator
	logger   *slog.Logger
	now      func() time.Time
}

func NewOfferService(offers repository.OfferRepository, refs *integrity.Enforcer, validate *validation.Validator, logger *slog.Logger) *OfferService {
	return &OfferService{offers: offers, refs: refs, validate: validate, logger: logger, now: time.Now}
}

func (s *OfferService) List(ctx context.Context) ([]model.Offer, error) {
	return s.offers.List(ctx)
}

func (s *OfferService) Get(ctx context.Context, id xid.ID) (*model.Offer, error) {
	return s.offers.GetByID(ctx, id)
}

// Count is the size of the offers collection.
func (s *OfferService) Count(ctx context.Context) (int, error) {
	all, err := s.offers.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/offers: counting: %w", err)
	}
	return len(all), nil
}

// ListOwn returns the caller's offers in joined form.
func (s *OfferService) ListOwn(ctx context.Context, caller *auth.Principal) ([]model.OfferView, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	return s.offers.ViewsByUser(ctx, caller.UserID)
}

// Create publishes an offer owned by the caller.
func (s *OfferService) Create(ctx context.Context, caller *auth.Principal, in OfferInput) (*model.Offer, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	if err := s.refs.CheckReference(ctx, "user_id", model.Users, caller.UserID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	productID, _ := xid.FromString(in.ProductID)
	if err := s.refs.CheckReference(ctx, "product_id", model.Products, productID); err != nil {
		return nil, err
	}

	o := &model.Offer{
		UserID:     caller.UserID,
		ProductID:  productID,
		OfferStart: s.now().UTC(),
		Unit:       in.Unit,
		UnitPrice:  round(*in.UnitPrice),
		Quantity:   round(in.Quantity),
		PictureURL: in.PictureURL,
		Info:       in.Info,
	}
	if in.OfferStart != nil {
		o.OfferStart = in.OfferStart.Time
	}
	if in.OfferEnd != nil {
		end := in.OfferEnd.Time
		o.OfferEnd = &end
	}
	if err := checkPeriod(o); err != nil {
		return nil, err
	}

	if err := s.offers.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("service/offers: creating: %w", err)
	}
	s.logger.Info("offer created", slog.String("offerID", o.ID.String()), slog.String("userID", o.UserID.String()))
	return o, nil
}

// Update applies an admin patch. A patch naming any immutable field is
// rejected whole.
func (s *OfferService) Update(ctx context.Context, id xid.ID, patch integrity.Patch) (*model.Offer, error) {
	if err := integrity.OfferGuard.Check(patch); err != nil {
		return nil, err
	}
	o, err := s.offers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, patch)
}

// UpdateOwn is Update restricted to the offer's owner.
func (s *OfferService) UpdateOwn(ctx context.Context, caller *auth.Principal, id xid.ID, patch integrity.Patch) (*model.Offer, error) {
	o, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := integrity.OfferGuard.Check(patch); err != nil {
		return nil, err
	}
	return s.apply(ctx, o, patch)
}

// Delete removes an offer no order line refers to.
func (s *OfferService) Delete(ctx context.Context, id xid.ID) error {
	if err := s.refs.CheckDelete(ctx, model.Offers, id); err != nil {
		return err
	}
	if err := s.offers.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("offer deleted", slog.String("offerID", id.String()))
	return nil
}

// DeleteOwn is Delete restricted to the offer's owner.
func (s *OfferService) DeleteOwn(ctx context.Context, caller *auth.Principal, id xid.ID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

// Page filters, sorts and slices the joined offer listing.
//
// Every view is rendered to JSON once; the filter and the sort key are then
// read with gjson paths, so any field of the joined document can be sorted
// on. Documents missing the sort field come first in ascending order and
// last in descending order.
func (s *OfferService) Page(ctx context.Context, q PageQuery) (*Page, error) {
	var re *regexp.Regexp
	if q.Filter != "" && q.Filter != "*" {
		var err error
		if re, err = compileFilter("filter", q.Filter); err != nil {
			return nil, err
		}
	}

	views, err := s.offers.Views(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/offers: loading views: %w", err)
	}

	type doc struct {
		view model.OfferView
		raw  []byte
	}
	now := s.now()
	docs := make([]doc, 0, len(views))
	for _, v := range views {
		if q.ActiveOnly && !v.ActiveAt(now) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("service/offers: encoding view %s: %w", v.ID, err)
		}
		if re != nil && !matchesAny(re, raw) {
			continue
		}
		docs = append(docs, doc{view: v, raw: raw})
	}

	if field := strings.TrimPrefix(q.SortField, "-"); field != "" {
		desc := strings.HasPrefix(q.SortField, "-")
		keys := make([]gjson.Result, len(docs))
		for i := range docs {
			keys[i] = gjson.GetBytes(docs[i].raw, field)
		}
		idx := make([]int, len(docs))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ka, kb := keys[idx[a]], keys[idx[b]]
			if desc {
				return kb.Less(ka, true)
			}
			return ka.Less(kb, true)
		})
		sorted := make([]doc, len(docs))
		for i, j := range idx {
			sorted[i] = docs[j]
		}
		docs = sorted
	}

	page := &Page{Total: len(docs), Items: []model.OfferView{}}
	if q.Offset >= len(docs) {
		return page, nil
	}
	end := len(docs)
	if q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	for _, d := range docs[q.Offset:end] {
		page.Items = append(page.Items, d.view)
	}
	return page, nil
}

func matchesAny(re *regexp.Regexp, raw []byte) bool {
	for _, path := range searchPaths {
		if v := gjson.GetBytes(raw, path); v.Exists() && re.MatchString(v.String()) {
			return true
		}
	}
	return false
}

// owned loads an offer and checks the caller owns it.
func (s *OfferService) owned(ctx context.Context, caller *auth.Principal, id xid.ID) (*model.Offer, error) {
	if err := auth.Authorize(caller, auth.Requirement{}); err != nil {
		return nil, err
	}
	o, err := s.offers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(caller, auth.Requirement{Owner: &o.UserID, Kind: "offer"}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OfferService) apply(ctx context.Context, o *model.Offer, patch integrity.Patch) (*model.Offer, error) {
	var p offerPatch
	if err := patch.Without("offer_end").Decode(&p); err != nil {
		return nil, apperror.ValidationFailed("body", fmt.Sprintf("Invalid offer data: %s", err))
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}

	if raw, ok := patch["offer_end"]; ok {
		if isNull(raw) {
			o.OfferEnd = nil
		} else {
			var end Timestamp
			if err := json.Unmarshal(raw, &end); err != nil {
				return nil, apperror.ValidationFailed("offer_end", fmt.Sprintf("offer_end: %s", err))
			}
			o.OfferEnd = &end.Time
		}
	}
	if p.Quantity != nil {
		o.Quantity = round(*p.Quantity)
	}
	if p.PictureURL != nil {
		o.PictureURL = *p.PictureURL
	}
	if err := checkPeriod(o); err != nil {
		return nil, err
	}

	if err := s.offers.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("service/offers: updating %s: %w", o.ID, err)
	}
	return o, nil
}

func checkPeriod(o *model.Offer) error {
	if o.OfferEnd != nil && o.OfferEnd.Before(o.OfferStart) {
		return apperror.ValidationFailed("offer_end", "offer_end must not be earlier than offer_start")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
