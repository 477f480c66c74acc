// Package apperror defines the domain error taxonomy.
//
// Services return *AppError values wrapping one of the sentinel errors below.
// Callers classify them with errors.Is (sentinel) and read the human-readable
// text with errors.As (*AppError). Only the HTTP layer knows status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid id")
	ErrValidation        = errors.New("Validation Error")
	ErrDuplicate         = errors.New("duplicate")
	ErrReferenceConflict = errors.New("reference conflict")
	ErrDanglingReference = errors.New("dangling reference")
	ErrForbidden         = errors.New("forbidden")
	ErrNotOwner          = errors.New("not owner")
	ErrImmutableField    = errors.New("immutable field")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrWrongCredentials  = errors.New("wrong credentials")
	ErrRateLimited       = errors.New("rate limited")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record of the given kind ("Offer", "User", ...).
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
	}
}

// NotLoggedIn is returned by autologin when no retained session can be revived.
func NotLoggedIn() *AppError {
	return &AppError{Err: ErrNotFound, Message: "Please log in!"}
}

// InvalidID reports an id that is not a well-formed EntityId.
func InvalidID(id string) *AppError {
	return &AppError{
		Err:     ErrInvalidID,
		Message: fmt.Sprintf("This %s id is not valid.", id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// NoValidFields is returned when an update carries nothing that may be applied.
func NoValidFields() *AppError {
	return &AppError{Err: ErrValidation, Message: "No valid field(s) in request!"}
}

// Duplicate reports a unique-index violation on field.
func Duplicate(field, value string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: fmt.Sprintf("%s %s already exists", field, value),
		Field:   field,
	}
}

// EmailExists is the registration-time duplicate e-mail error.
func EmailExists(email string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: fmt.Sprintf("User with email %s already exists", email),
		Field:   "email",
	}
}

// ReferenceConflict rejects a delete while dependent records still point at
// the target. collection names the collection the delete was aimed at.
func ReferenceConflict(collection string) *AppError {
	return &AppError{
		Err:     ErrReferenceConflict,
		Message: fmt.Sprintf("Can't DELETE from %s collection, because has reference in other collection(s).", collection),
	}
}

// DanglingReference rejects a write whose foreign-key field points nowhere.
func DanglingReference(field, collection string) *AppError {
	return &AppError{
		Err:     ErrDanglingReference,
		Message: fmt.Sprintf("The referenced primary key in %s field could not be found in collection %s", field, collection),
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// MissingRole is the role-stage failure of the authorization gate.
func MissingRole() *AppError {
	return Forbidden("You don't have the necessary role(s) to perform this operation!")
}

// NotOwner rejects an operation on a resource owned by someone else.
// It is distinct from Forbidden: the caller has the role, not the resource.
func NotOwner(kind string) *AppError {
	msg := fmt.Sprintf("The %s cannot be modified, because it is not yours!", kind)
	if kind == "offer" {
		msg = "Offer cannot be modified, because it is not your offer!"
	}
	return &AppError{Err: ErrNotOwner, Message: msg}
}

// ImmutableField rejects an update that touches a field fixed at creation.
// kind is the document kind used in the advice ("offer", "order").
func ImmutableField(field, kind string) *AppError {
	return &AppError{
		Err:     ErrImmutableField,
		Message: fmt.Sprintf("The %s cannot be modified! Try delete document and create a new %s.", field, kind),
		Field:   field,
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "Session id missing or session has expired, please log in!",
	}
}

func WrongCredentials() *AppError {
	return &AppError{Err: ErrWrongCredentials, Message: "Wrong credentials provided"}
}

func EmailNotVerified() *AppError {
	return &AppError{
		Err:     ErrWrongCredentials,
		Message: "Your Email has not been verified. Please click on resend!",
	}
}

// VerificationNotFound covers every failed e-mail confirmation: bad token,
// expired token, unknown user or mismatching address.
func VerificationNotFound() *AppError {
	return &AppError{
		Err:     ErrWrongCredentials,
		Message: "We were unable to find a user for this verification. Please SignUp!",
	}
}

// RateLimited is returned once a client exhausts its request budget.
// window is the human-readable refill period ("15 minutes").
func RateLimited(window string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: fmt.Sprintf("Too many requests from this IP, please try again after %s.", window),
	}
}
