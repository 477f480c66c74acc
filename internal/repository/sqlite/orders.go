package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
)

var _ repository.OrderRepository = (*OrderStore)(nil)

// OrderStore is the orders collection. Detail lines live in order_details and
// keep their position so an order reads back in the order it was written.
type OrderStore struct {
	db *DB
}

// Create inserts the order and its detail lines in one transaction.
func (s *OrderStore) Create(ctx context.Context, o *model.Order) error {
	if o.ID.IsNil() {
		o.ID = model.NewID()
	}
	o.OrderDate = o.OrderDate.UTC()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, order_date) VALUES (?, ?, ?)`,
			o.ID, o.UserID, o.OrderDate,
		); err != nil {
			return fmt.Errorf("sqlite: inserting order: %w", err)
		}
		return insertDetails(ctx, tx, o)
	})
}

func (s *OrderStore) GetByID(ctx context.Context, id xid.ID) (*model.Order, error) {
	var o model.Order
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, order_date FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.UserID, &o.OrderDate)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("Order", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting order %s: %w", id, err)
	}

	orders := []model.Order{o}
	if err := s.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *OrderStore) List(ctx context.Context) ([]model.Order, error) {
	return s.list(ctx, `SELECT id, user_id, order_date FROM orders ORDER BY id`)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID xid.ID) ([]model.Order, error) {
	return s.list(ctx, `SELECT id, user_id, order_date FROM orders WHERE user_id = ? ORDER BY id`, userID)
}

// Update rewrites order_date and replaces the detail lines. user_id never changes.
func (s *OrderStore) Update(ctx context.Context, o *model.Order) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE orders SET order_date = ? WHERE id = ?`, o.OrderDate.UTC(), o.ID)
		if err != nil {
			return fmt.Errorf("sqlite: updating order %s: %w", o.ID, err)
		}
		if err := requireAffected(res, "Order", o.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = ?`, o.ID); err != nil {
			return fmt.Errorf("sqlite: clearing details of %s: %w", o.ID, err)
		}
		return insertDetails(ctx, tx, o)
	})
}

func (s *OrderStore) Delete(ctx context.Context, id xid.ID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting order %s: %w", id, err)
		}
		if err := requireAffected(res, "Order", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_details WHERE order_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting details of %s: %w", id, err)
		}
		return nil
	})
}

// DeleteDetail removes one detail line of an existing order.
func (s *OrderStore) DeleteDetail(ctx context.Context, orderID, detailID xid.ID) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM order_details WHERE order_id = ? AND id = ?`, orderID, detailID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting detail %s: %w", detailID, err)
	}
	return requireAffected(res, "Order detail", detailID)
}

func (s *OrderStore) ReferencesUser(ctx context.Context, userID xid.ID) (bool, error) {
	return s.db.exists(ctx, "orders", "user_id", userID)
}

func (s *OrderStore) ReferencesOffer(ctx context.Context, offerID xid.ID) (bool, error) {
	return s.db.exists(ctx, "order_details", "offer_id", offerID)
}

func (s *OrderStore) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing orders: %w", err)
	}
	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	// Close before the detail queries: ":memory:" databases have a single
	// connection and it is still held by rows until closed.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating orders: %w", err)
	}

	if err := s.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachDetails loads detail lines for every order in place.
func (s *OrderStore) attachDetails(ctx context.Context, orders []model.Order) error {
	for i := range orders {
		rows, err := s.db.conn.QueryContext(ctx,
			`SELECT id, offer_id, quantity, stars FROM order_details
			 WHERE order_id = ? ORDER BY position`, orders[i].ID)
		if err != nil {
			return fmt.Errorf("sqlite: loading details of %s: %w", orders[i].ID, err)
		}
		details := []model.OrderDetail{}
		for rows.Next() {
			var d model.OrderDetail
			if err := rows.Scan(&d.ID, &d.OfferID, &d.Quantity, &d.Stars); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning detail: %w", err)
			}
			details = append(details, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating details: %w", err)
		}
		orders[i].Details = details
	}
	return nil
}

func insertDetails(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	for i := range o.Details {
		d := &o.Details[i]
		if d.ID.IsNil() {
			d.ID = model.NewID()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_details (id, order_id, position, offer_id, quantity, stars)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, o.ID, i, d.OfferID, d.Quantity, d.Stars,
		); err != nil {
			return fmt.Errorf("sqlite: inserting detail %d of %s: %w", i, o.ID, err)
		}
	}
	return nil
}

func (s *OrderStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing: %w", err)
	}
	return nil
}
