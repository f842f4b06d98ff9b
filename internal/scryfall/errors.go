package scryfall

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrFetch matches any transport or HTTP failure returned by the client.
var ErrFetch = errors.New("fetch failed")

// FetchError describes a failed remote request.
type FetchError struct {
	Op      string // "catalog", "named", "search", "get"
	URL     string
	Status  int    // HTTP status, 0 for transport failures
	Code    string // remote error code such as "not_found"
	Details string
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// NoMatches reports whether err is the search endpoint's 404 response,
// which the remote API uses to signal an empty result set.
func NoMatches(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == http.StatusNotFound && fe.Code == "not_found"
}

type apiError struct {
	Object  string `json:"object"`
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Details string `json:"details"`
}

func statusError(op, url string, status int, body []byte) *FetchError {
	fe := &FetchError{Op: op, URL: url, Status: status}
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Object == "error" {
		fe.Code = ae.Code
		fe.Details = ae.Details
	}
	return fe
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
