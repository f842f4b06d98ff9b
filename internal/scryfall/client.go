// Package scryfall is a small client for the Scryfall card database API.
//
// Every method returns the raw response body so callers can keep the payload
// around for diagnostics when it fails to decode.
package scryfall

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.scryfall.com"

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration // per attempt, default 30s
	RequestsPerSecond float64       // <= 0 disables limiting
	MaxRetries        int           // retries after the first attempt on 429/5xx
	RetryBaseDelay    time.Duration // default 250ms
	Logger            zerolog.Logger
}

// Client issues rate limited GET requests with bounded retries.
type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	log        zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mtgls"
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 250 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	return &Client{
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		log:        opts.Logger.With().Str("component", "scryfall").Logger(),
	}
}

// Catalog fetches a catalog endpoint such as "catalog/card-names" or "sets".
func (c *Client) Catalog(ctx context.Context, endpoint string) ([]byte, error) {
	return c.get(ctx, "catalog", "/"+strings.TrimLeft(endpoint, "/"), nil)
}

// NamedCard fetches a single card by exact name.
func (c *Client) NamedCard(ctx context.Context, name string) ([]byte, error) {
	return c.get(ctx, "named", "/cards/named", map[string]string{"exact": name})
}

// Search runs a full-text card search and returns the first result page.
// A query with no matches fails with an error for which NoMatches is true.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	return c.get(ctx, "search", "/cards/search", map[string]string{"q": query})
}

// Get fetches an absolute API URI carried on a record, e.g. a rulings URI.
func (c *Client) Get(ctx context.Context, uri string) ([]byte, error) {
	return c.get(ctx, "get", uri, nil)
}

func (c *Client) get(ctx context.Context, op, url string, query map[string]string) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&FetchError{Op: op, URL: url, Err: err})
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(url)
		if err != nil {
			fe := &FetchError{Op: op, URL: url, Err: err}
			if ctx.Err() != nil {
				return backoff.Permanent(fe)
			}
			return fe
		}

		if resp.IsSuccess() {
			body = resp.Body()
			return nil
		}

		fe := statusError(op, resp.Request.URL, resp.StatusCode(), resp.Body())
		if retryable(fe.Status) {
			return fe
		}
		return backoff.Permanent(fe)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseDelay
	exp.Multiplier = 2
	exp.MaxInterval = 8 * c.baseDelay
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{Op: op, URL: url, Err: err}
	}
	return body, nil
}
