// Package testutil provides reusable test utilities for mtgls tests: a fake
// card API served over HTTP and a builder for catalog snapshot directories.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtgcode/mtgls/internal/scryfall"
)

// FakeAPI is an in-process stand-in for the remote card API. It serves
// whatever it was configured with and counts requests by kind: "catalog",
// "named", "search", and "get".
type FakeAPI struct {
	Server *httptest.Server

	t        *testing.T
	mu       sync.Mutex
	catalogs map[string]string
	cards    map[string]string
	searches map[string]string
	pages    map[string]string
	failures map[string]int
	calls    map[string]int
	gate     chan struct{}
}

// NewFakeAPI starts a fake API that is shut down when the test ends.
// Configuration may change while it is serving.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	api := &FakeAPI{
		t:        t,
		catalogs: make(map[string]string),
		cards:    make(map[string]string),
		searches: make(map[string]string),
		pages:    make(map[string]string),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// URL returns the API root.
func (a *FakeAPI) URL() string { return a.Server.URL }

// Client returns a client for the fake with retries and rate limiting off.
func (a *FakeAPI) Client() *scryfall.Client {
	return scryfall.New(scryfall.Options{
		BaseURL: a.URL(),
		Timeout: 5 * time.Second,
	})
}

// WithCatalog serves a string catalog at catalog/<id>, or the object list at
// sets when id is "sets".
func (a *FakeAPI) WithCatalog(id string, values ...string) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == "sets" {
		a.catalogs["/sets"] = SetsJSON(values...)
	} else {
		a.catalogs["/catalog/"+id] = CatalogJSON(values...)
	}
	return a
}

// WithRawCatalog serves body verbatim at the endpoint path.
func (a *FakeAPI) WithRawCatalog(endpoint, body string) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalogs["/"+strings.TrimLeft(endpoint, "/")] = body
	return a
}

// WithCard serves a card document for exact-name lookups of name.
func (a *FakeAPI) WithCard(name, body string) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cards[name] = body
	return a
}

// WithSearch serves body for the exact query string. Unknown queries get
// the API's not_found response.
func (a *FakeAPI) WithSearch(query, body string) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches[query] = body
	return a
}

// WithPage serves body at an arbitrary path, such as a rulings URI.
func (a *FakeAPI) WithPage(path, body string) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[path] = body
	return a
}

// Fail makes every request of the given kind answer with status.
// A zero status clears the failure.
func (a *FakeAPI) Fail(kind string, status int) *FakeAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	if status == 0 {
		delete(a.failures, kind)
	} else {
		a.failures[kind] = status
	}
	return a
}

// Hold blocks every request until the returned release func is called.
func (a *FakeAPI) Hold() (release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	gate := make(chan struct{})
	a.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.gate = nil
			a.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many requests of kind were served.
func (a *FakeAPI) Calls(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[kind]
}

// TotalCalls returns the number of requests served.
func (a *FakeAPI) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		n += c
	}
	return n
}

// RulingsURI returns an absolute rulings URI on the fake for a card id.
func (a *FakeAPI) RulingsURI(id string) string {
	return a.URL() + RulingsPath(id)
}

// RulingsPath is the path RulingsURI points at.
func RulingsPath(id string) string {
	return "/cards/" + id + "/rulings"
}

func kindOf(path string) string {
	switch {
	case strings.HasPrefix(path, "/catalog/"), path == "/sets":
		return "catalog"
	case path == "/cards/named":
		return "named"
	case path == "/cards/search":
		return "search"
	default:
		return "get"
	}
}

func (a *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	kind := kindOf(r.URL.Path)

	a.mu.Lock()
	a.calls[kind]++
	gate := a.gate
	status := a.failures[kind]
	var body string
	var found bool
	switch kind {
	case "catalog":
		body, found = a.catalogs[r.URL.Path]
	case "named":
		body, found = a.cards[r.URL.Query().Get("exact")]
	case "search":
		body, found = a.searches[r.URL.Query().Get("q")]
	default:
		body, found = a.pages[r.URL.Path]
	}
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case status != 0:
		writeAPIError(w, status, "fake_failure", fmt.Sprintf("configured %s failure", kind))
	case !found:
		writeAPIError(w, http.StatusNotFound, "not_found", "No cards found matching the request.")
	default:
		_, _ = w.Write([]byte(body))
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, details string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object":  "error",
		"code":    code,
		"status":  status,
		"details": details,
	})
}

// CatalogJSON renders a string catalog document.
func CatalogJSON(values ...string) string {
	return mustJSON(map[string]any{"object": "catalog", "total_values": len(values), "data": nonNil(values)})
}

// SetsJSON renders a sets list with one object per name.
func SetsJSON(names ...string) string {
	sets := make([]map[string]string, 0, len(names))
	for _, n := range names {
		sets = append(sets, map[string]string{"object": "set", "name": n})
	}
	return mustJSON(map[string]any{"object": "list", "data": sets})
}

// Card describes a card document for tests. Empty fields are omitted.
type Card struct {
	ID         string
	Name       string
	ManaCost   string
	CMC        float64
	TypeLine   string
	OracleText string
	Power      string
	Toughness  string
	RulingsURI string
	USD        string
}

// JSON renders the card as the API would.
func (c Card) JSON() string {
	return mustJSON(c.doc())
}

func (c Card) doc() map[string]any {
	doc := map[string]any{"object": "card", "cmc": c.CMC}
	set := func(key, v string) {
		if v != "" {
			doc[key] = v
		}
	}
	set("id", c.ID)
	set("name", c.Name)
	set("mana_cost", c.ManaCost)
	set("type_line", c.TypeLine)
	set("oracle_text", c.OracleText)
	set("power", c.Power)
	set("toughness", c.Toughness)
	set("rulings_uri", c.RulingsURI)
	if c.USD != "" {
		doc["prices"] = map[string]any{"usd": c.USD, "usd_foil": nil}
	}
	return doc
}

// SearchJSON renders a search result list. Items may be Card values or raw
// JSON strings for malformed documents.
func SearchJSON(items ...any) string {
	data := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case Card:
			data = append(data, json.RawMessage(v.JSON()))
		case string:
			data = append(data, json.RawMessage(v))
		default:
			panic(fmt.Sprintf("SearchJSON: unsupported item %T", it))
		}
	}
	return mustJSON(map[string]any{"object": "list", "total_cards": len(items), "has_more": false, "data": data})
}

// RulingsJSON renders a rulings list from (published_at, comment) pairs.
func RulingsJSON(pairs ...string) string {
	rulings := make([]map[string]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rulings = append(rulings, map[string]string{
			"object":       "ruling",
			"source":       "wotc",
			"published_at": pairs[i],
			"comment":      pairs[i+1],
		})
	}
	return mustJSON(map[string]any{"object": "list", "has_more": false, "data": rulings})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
