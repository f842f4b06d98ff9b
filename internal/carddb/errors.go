package carddb

import (
	"errors"
	"fmt"

	"github.com/mtgcode/mtgls/internal/scryfall"
)

var (
	// ErrNotFound means the name is not in the name index at all.
	ErrNotFound = errors.New("card not found")
	// ErrFetch matches transport and HTTP failures.
	ErrFetch = scryfall.ErrFetch
	// ErrDeserialize means a payload did not decode into the expected shape.
	ErrDeserialize = errors.New("deserialization failed")
	// ErrProtocol means a well-formed response lacked a required field.
	ErrProtocol = errors.New("protocol error")
	// ErrInvalidArgument means the caller passed a record missing a required field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCatalogUnavailable means a catalog could be neither read nor fetched.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// FetchError is the remote client's error type.
type FetchError = scryfall.FetchError

// NotFoundError names the card that is not in the index.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("card not found: %q", e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DeserializationError keeps the raw payload so schema drift can be diagnosed.
type DeserializationError struct {
	What string
	Raw  []byte
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialize }

// ProtocolError reports a response missing a required field.
type ProtocolError struct {
	Op    string
	Input string
	Field string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s %q: response has no %q field", e.Op, e.Input, e.Field)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// CatalogError is returned when every fallback for a catalog failed. It
// names both the local snapshot failure and the remote failure.
type CatalogError struct {
	Catalog  string
	Path     string
	ReadErr  error
	FetchErr error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("load catalog %s: local snapshot %s: %v; remote fetch: %v",
		e.Catalog, e.Path, e.ReadErr, e.FetchErr)
}

func (e *CatalogError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.ReadErr, e.FetchErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *CatalogError) Is(target error) bool { return target == ErrCatalogUnavailable }

// asFetchError wraps a non-FetchError failure from a Remote so every
// transport failure matches ErrFetch.
func asFetchError(op, input string, err error) error {
	if errors.Is(err, ErrFetch) {
		return err
	}
	return &FetchError{Op: op, URL: input, Err: err}
}
