package model

import (
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
)

// Collection names. They double as the resource names shown in
// reference-conflict messages ("Can't DELETE from categories collection...").
type Collection string

const (
	Users      Collection = "users"
	Categories Collection = "categories"
	Products   Collection = "products"
	Offers     Collection = "offers"
	Orders     Collection = "orders"
)

// ParseID converts the textual form of an EntityId.
//
// Every stored record is keyed by a 12-byte xid (same width as a document-store
// ObjectID). A malformed id is reported as apperror.ErrInvalidID, which the
// HTTP layer maps to 404, before any storage round-trip happens.
func ParseID(s string) (xid.ID, error) {
	s = strings.TrimSpace(s)
	id, err := xid.FromString(s)
	if err != nil {
		return xid.NilID(), apperror.InvalidID(s)
	}
	return id, nil
}

// NewID mints a fresh EntityId.
func NewID() xid.ID {
	return xid.New()
}
