// GO TESTING BASICS:
// 1. Test files MUST end in _test.go — Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("Offer", "abc123"), ErrNotFound, true},
		{"NotLoggedIn wraps ErrNotFound", NotLoggedIn(), ErrNotFound, true},
		{"InvalidID wraps ErrInvalidID", InvalidID("xyz"), ErrInvalidID, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("name", "name is required"), ErrValidation, true},
		{"EmailExists wraps ErrDuplicate", EmailExists("a@b.hu"), ErrDuplicate, true},
		{"ReferenceConflict wraps ErrReferenceConflict", ReferenceConflict("categories"), ErrReferenceConflict, true},
		{"DanglingReference wraps ErrDanglingReference", DanglingReference("product_id", "products"), ErrDanglingReference, true},
		{"ImmutableField wraps ErrImmutableField", ImmutableField("unit", "offer"), ErrImmutableField, true},
		{"NotOwner wraps ErrNotOwner", NotOwner("offer"), ErrNotOwner, true},
		{"NotOwner is NOT Forbidden", NotOwner("order"), ErrForbidden, false},
		{"MissingRole wraps ErrForbidden", MissingRole(), ErrForbidden, true},
		{"EmailNotVerified wraps ErrWrongCredentials", EmailNotVerified(), ErrWrongCredentials, true},
		{"Unauthenticated does NOT match ErrWrongCredentials", Unauthenticated(), ErrWrongCredentials, false},
		{"wrapped chain still matches", fmt.Errorf("service: %w", NotFound("Order", "1")), ErrNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("Offer", "abc123"),
			wantMessage: "Offer with id abc123 not found",
		},
		{
			name:        "EmailExists names the address",
			err:         EmailExists("admin@jedlik.eu"),
			wantMessage: "User with email admin@jedlik.eu already exists",
		},
		{
			name:        "ImmutableField names field and kind",
			err:         ImmutableField("unit_price", "offer"),
			wantMessage: "The unit_price cannot be modified! Try delete document and create a new offer.",
		},
		{
			name:        "ReferenceConflict names the collection",
			err:         ReferenceConflict("categories"),
			wantMessage: "Can't DELETE from categories collection, because has reference in other collection(s).",
		},
		{
			name:        "DanglingReference names field and collection",
			err:         DanglingReference("product_id", "products"),
			wantMessage: "The referenced primary key in product_id field could not be found in collection products",
		},
		{
			name:        "offer ownership keeps its dedicated wording",
			err:         NotOwner("offer"),
			wantMessage: "Offer cannot be modified, because it is not your offer!",
		},
		{
			name:        "WrongCredentials",
			err:         WrongCredentials(),
			wantMessage: "Wrong credentials provided",
		},
		{
			name:        "Unauthenticated",
			err:         Unauthenticated(),
			wantMessage: "Session id missing or session has expired, please log in!",
		},
		{
			name:        "RateLimited mentions the window",
			err:         RateLimited("15 minutes"),
			wantMessage: "Too many requests from this IP, please try again after 15 minutes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("Offer", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestFieldIsRecorded(t *testing.T) {
	if err := ValidationFailed("email", "invalid email format"); err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if err := ImmutableField("info", "offer"); err.Field != "info" {
		t.Errorf("Field = %q, want %q", err.Field, "info")
	}
}
