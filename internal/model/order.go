package model

import (
	"time"

	"github.com/rs/xid"
)

// Order is a buyer's purchase: an ordered list of detail lines, each pointing
// at an offer. UserID is taken from the session at creation and never changes.
type Order struct {
	ID        xid.ID        `json:"_id"`
	UserID    xid.ID        `json:"user_id"`
	OrderDate time.Time     `json:"order_date"`
	Details   []OrderDetail `json:"details"`
}

// OrderDetail is one line of an order. Stars is the buyer's 0–5 rating.
type OrderDetail struct {
	ID       xid.ID `json:"_id"`
	OfferID  xid.ID `json:"offer_id"`
	Quantity int    `json:"quantity"`
	Stars    int    `json:"stars"`
}

// CartItem is a pending purchase held in the session, not in storage.
type CartItem struct {
	OfferID  xid.ID `json:"offer_id"`
	Quantity int    `json:"quantity"`
}
