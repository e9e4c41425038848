package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotOwner         = fmt.Errorf("%w: order belongs to other user", ErrNotAuthorized)
	ErrAdminOnly        = fmt.Errorf("%w: admins only", ErrNotAuthorized)
	ErrVendorOnly       = fmt.Errorf("%w: only vendors are allowed to add items", ErrNotAuthorized)

	ErrNotFound      = errors.New("not found")
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("item %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)

	ErrAlreadyPlaced      = errors.New("order already placed")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("no user with given credentials found")
	ErrDuplicateRequest   = errors.New("a request with this idempotency key is still in progress")
)

// InsufficientStockError reports an item that cannot cover a requested quantity.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("available quantity of %s is only %d", e.ItemName, e.Available)
}

// PersistenceError wraps an unexpected datastore failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

var domainErrors = []error{
	ErrNotAuthenticated,
	ErrNotAuthorized,
	ErrNotFound,
	ErrAlreadyPlaced,
	ErrInvalidRequest,
	ErrUsernameTaken,
	ErrInvalidCredentials,
	ErrDuplicateRequest,
}

// classify passes domain errors through and wraps everything else as a
// PersistenceError for op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *InsufficientStockError
	var persistErr *PersistenceError
	if errors.As(err, &stockErr) || errors.As(err, &persistErr) {
		return err
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
