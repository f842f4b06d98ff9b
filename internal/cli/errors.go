package cli

import (
	"errors"
	"os"

	"github.com/mtgcode/mtgls/internal/carddb"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	ErrCardNotFound       = "CARD_NOT_FOUND"
	ErrFetchFailed        = "FETCH_FAILED"
	ErrDeserializeFailed  = "DESERIALIZE_FAILED"
	ErrProtocolError      = "PROTOCOL_ERROR"
	ErrInvalidInput       = "INVALID_INPUT"
	ErrConfigInvalid      = "CONFIG_INVALID"
	ErrCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrFileReadError      = "FILE_READ_ERROR"
	ErrFileWriteError     = "FILE_WRITE_ERROR"
	ErrInternal           = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnUnknownCard  = "UNKNOWN_CARD"
	WarnUnresolved   = "CARD_UNRESOLVED"
	WarnCatalogStale = "CATALOG_STALE"
)

// errorCode maps a card database failure onto its stable code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, carddb.ErrNotFound):
		return ErrCardNotFound
	case errors.Is(err, carddb.ErrCatalogUnavailable):
		return ErrCatalogUnavailable
	case errors.Is(err, carddb.ErrFetch):
		return ErrFetchFailed
	case errors.Is(err, carddb.ErrDeserialize):
		return ErrDeserializeFailed
	case errors.Is(err, carddb.ErrProtocol):
		return ErrProtocolError
	case errors.Is(err, carddb.ErrInvalidArgument):
		return ErrInvalidInput
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return ErrFileReadError
	default:
		return ErrInternal
	}
}

func suggestionFor(code string) string {
	switch code {
	case ErrCatalogUnavailable:
		return "Check your network connection, then run 'mtgls catalog refresh'"
	case ErrFetchFailed:
		return "The card API may be unreachable; retry later or check api_base_url"
	case ErrConfigInvalid:
		return "Run 'mtgls config' to see the resolved settings"
	}
	return ""
}

// handleCardError reports err under the code errorCode picks for it.
func handleCardError(err error) error {
	code := errorCode(err)
	return handleError(code, err, suggestionFor(code))
}
