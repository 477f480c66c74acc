package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
)

var _ repository.OfferRepository = (*OfferStore)(nil)

// OfferStore is the offers collection.
type OfferStore struct {
	db *DB
}

const offerColumns = `id, user_id, product_id, offer_start, offer_end, unit, unit_price,
	quantity, picture_url, info`

func (s *OfferStore) Create(ctx context.Context, o *model.Offer) error {
	if o.ID.IsNil() {
		o.ID = model.NewID()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.ProductID, o.OfferStart.UTC(), nullTime(o.OfferEnd), o.Unit, o.UnitPrice,
		o.Quantity, o.PictureURL, o.Info,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting offer: %w", err)
	}
	return nil
}

func (s *OfferStore) GetByID(ctx context.Context, id xid.ID) (*model.Offer, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("Offer", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting offer %s: %w", id, err)
	}
	return o, nil
}

func (s *OfferStore) List(ctx context.Context) ([]model.Offer, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing offers: %w", err)
	}
	defer rows.Close()

	out := []model.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning offer: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Update writes the mutable columns only. The immutable ones are never
// touched here, whatever the caller put in o.
func (s *OfferStore) Update(ctx context.Context, o *model.Offer) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE offers SET offer_end = ?, quantity = ?, picture_url = ? WHERE id = ?`,
		nullTime(o.OfferEnd), o.Quantity, o.PictureURL, o.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating offer %s: %w", o.ID, err)
	}
	return requireAffected(res, "Offer", o.ID)
}

func (s *OfferStore) Delete(ctx context.Context, id xid.ID) error {
	return s.db.deleteByID(ctx, "offers", "Offer", id)
}

func (s *OfferStore) Exists(ctx context.Context, id xid.ID) (bool, error) {
	return s.db.exists(ctx, "offers", "id", id)
}

func (s *OfferStore) ReferencesUser(ctx context.Context, userID xid.ID) (bool, error) {
	return s.db.exists(ctx, "offers", "user_id", userID)
}

func (s *OfferStore) ReferencesProduct(ctx context.Context, productID xid.ID) (bool, error) {
	return s.db.exists(ctx, "offers", "product_id", productID)
}

// offerViewQuery joins offer → product → category and offer → owner.
// Inner joins drop offers whose references are broken, so a listing never
// shows half-empty rows.
const offerViewQuery = `
	SELECT o.id, o.offer_start, o.offer_end, o.unit, o.unit_price, o.picture_url,
	       o.quantity, o.info, o.user_id,
	       p.product_name, p.picture_url,
	       c.category_name, c.main_category,
	       u.name, u.email
	FROM offers o
	JOIN products   p ON p.id = o.product_id
	JOIN categories c ON c.id = p.category_id
	JOIN users      u ON u.id = o.user_id`

func (s *OfferStore) Views(ctx context.Context) ([]model.OfferView, error) {
	return s.views(ctx, offerViewQuery+` ORDER BY o.id`)
}

func (s *OfferStore) ViewsByUser(ctx context.Context, userID xid.ID) ([]model.OfferView, error) {
	return s.views(ctx, offerViewQuery+` WHERE o.user_id = ? ORDER BY o.id`, userID)
}

func (s *OfferStore) views(ctx context.Context, query string, args ...any) ([]model.OfferView, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying offer views: %w", err)
	}
	defer rows.Close()

	out := []model.OfferView{}
	for rows.Next() {
		var v model.OfferView
		var end sql.NullTime
		if err := rows.Scan(
			&v.ID, &v.OfferStart, &end, &v.Unit, &v.UnitPrice, &v.PictureURL,
			&v.Quantity, &v.Info, &v.UserID,
			&v.Product.ProductName, &v.Product.PictureURL,
			&v.Category.CategoryName, &v.Category.MainCategory,
			&v.Owner.Name, &v.Owner.Email,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning offer view: %w", err)
		}
		v.OfferEnd = timePtr(end)
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanOffer(sc scanner) (*model.Offer, error) {
	var o model.Offer
	var end sql.NullTime
	if err := sc.Scan(
		&o.ID, &o.UserID, &o.ProductID, &o.OfferStart, &end, &o.Unit, &o.UnitPrice,
		&o.Quantity, &o.PictureURL, &o.Info,
	); err != nil {
		return nil, err
	}
	o.OfferEnd = timePtr(end)
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
