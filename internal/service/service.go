// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, manages the session, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, and return
// apperror values, never HTTP status codes. The caller identity arrives as an
// *auth.Principal placed in the context by the authorization gate.
//
// REFERENCES:
// Every write that stores a foreign key asks the integrity.Enforcer first,
// and every delete asks whether something still points at the record.
// NewEnforcer wires the marketplace's dependency graph.
package service

import (
	"fmt"
	"math"
	"regexp"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
)

// Repositories bundles the collections the enforcer and services share.
type Repositories struct {
	Users      repository.UserRepository
	Categories repository.CategoryRepository
	Products   repository.ProductRepository
	Offers     repository.OfferRepository
	Orders     repository.OrderRepository
}

// NewEnforcer registers every collection as a reference target and every
// foreign-key edge as a dependent:
//
//	users      ← offers.user_id, orders.user_id
//	categories ← products.category_id
//	products   ← offers.product_id
//	offers     ← orders.details.offer_id
func NewEnforcer(r Repositories) *integrity.Enforcer {
	e := integrity.NewEnforcer()

	e.RegisterTarget(model.Users, r.Users.Exists)
	e.RegisterTarget(model.Categories, r.Categories.Exists)
	e.RegisterTarget(model.Products, r.Products.Exists)
	e.RegisterTarget(model.Offers, r.Offers.Exists)

	e.RegisterDependent(model.Users, integrity.Dependent{
		Collection: model.Offers, Field: "user_id", Referenced: r.Offers.ReferencesUser,
	})
	e.RegisterDependent(model.Users, integrity.Dependent{
		Collection: model.Orders, Field: "user_id", Referenced: r.Orders.ReferencesUser,
	})
	e.RegisterDependent(model.Categories, integrity.Dependent{
		Collection: model.Products, Field: "category_id", Referenced: r.Products.ReferencesCategory,
	})
	e.RegisterDependent(model.Products, integrity.Dependent{
		Collection: model.Offers, Field: "product_id", Referenced: r.Offers.ReferencesProduct,
	})
	e.RegisterDependent(model.Offers, integrity.Dependent{
		Collection: model.Orders, Field: "details.offer_id", Referenced: r.Orders.ReferencesOffer,
	})
	return e
}

// EventRecorder receives authentication outcomes (metrics).
type EventRecorder interface {
	AuthEvent(event string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, bool) {}

// round normalises client-supplied amounts: prices and quantities are whole.
func round(v float64) int {
	return int(math.Round(v))
}

// compileFilter builds the case-insensitive pattern used by keyword searches.
func compileFilter(field, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("Invalid regular expression: %s", err))
	}
	return re, nil
}
