// Package carddb owns the card data a decklist session needs: catalog
// snapshots, the name index with lazily resolved card records, the advanced
// search cache, and the rulings cache.
package carddb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mtgcode/mtgls/internal/cardstore"
	"github.com/mtgcode/mtgls/internal/fuzzy"
	"github.com/mtgcode/mtgls/internal/model"
	"github.com/mtgcode/mtgls/internal/scryfall"
	"github.com/mtgcode/mtgls/internal/searchquery"
)

// Remote is the subset of the card API the database needs. Every method
// returns the raw response body.
type Remote interface {
	Catalog(ctx context.Context, endpoint string) ([]byte, error)
	NamedCard(ctx context.Context, name string) ([]byte, error)
	Search(ctx context.Context, query string) ([]byte, error)
	Get(ctx context.Context, uri string) ([]byte, error)
}

// DefaultMaxCatalogAge is how long a catalog snapshot is served without
// asking the remote.
const DefaultMaxCatalogAge = 7 * 24 * time.Hour

// closestThreshold is the minimum Jaro-Winkler similarity for a
// suggestion when no subsequence match exists.
const closestThreshold = 0.8

// Options configures a DB.
type Options struct {
	Remote        Remote
	DataDir       string
	MaxCatalogAge time.Duration
	// Cards is an optional persistent card cache consulted before a named
	// lookup. Rows older than MaxCatalogAge are refetched.
	Cards           *cardstore.Store
	Logger          zerolog.Logger
	Registerer      prometheus.Registerer
	Now             func() time.Time
	LoadConcurrency int
	Catalogs        []Catalog
}

// DB is the per-session card database. It is safe for concurrent use.
type DB struct {
	remote   Remote
	store    *CatalogStore
	catalogs []Catalog
	cards    *cardstore.Store
	maxAge   time.Duration
	log      zerolog.Logger
	metrics  *metrics
	limit    int

	loadOnce sync.Once
	ready    chan struct{}

	mu        sync.RWMutex
	loadErr   error
	index     map[string]*model.Card // nil value: known but unresolved
	names     []string
	vocab     searchquery.Vocabularies
	snapshots []Snapshot
	searches  map[string][]string
	rulings   map[string][]model.Ruling

	flight singleflight.Group
}

// New builds a DB. Nothing is loaded until Load or Start is called.
func New(opts Options) *DB {
	if opts.MaxCatalogAge <= 0 {
		opts.MaxCatalogAge = DefaultMaxCatalogAge
	}
	if opts.LoadConcurrency <= 0 {
		opts.LoadConcurrency = 4
	}
	if opts.Catalogs == nil {
		opts.Catalogs = Catalogs
	}
	m := newMetrics(opts.Registerer)
	remote := countingRemote{Remote: opts.Remote, m: m}
	log := opts.Logger.With().Str("component", "carddb").Logger()

	return &DB{
		remote: remote,
		store: &CatalogStore{
			Remote: remote,
			Dir:    opts.DataDir,
			MaxAge: opts.MaxCatalogAge,
			Now:    opts.Now,
			Log:    log,
		},
		catalogs: opts.Catalogs,
		cards:    opts.Cards,
		maxAge:   opts.MaxCatalogAge,
		log:      log,
		metrics:  m,
		limit:    opts.LoadConcurrency,
		ready:    make(chan struct{}),
		index:    make(map[string]*model.Card),
		searches: make(map[string][]string),
		rulings:  make(map[string][]model.Ruling),
	}
}

// Load runs the catalog barrier once. Later calls return the first result.
func (db *DB) Load(ctx context.Context) error {
	db.loadOnce.Do(func() {
		defer close(db.ready)
		snaps, err := db.loadCatalogs(ctx, false)
		if err != nil {
			db.mu.Lock()
			db.loadErr = err
			db.mu.Unlock()
			return
		}
		db.install(snaps)
	})
	return db.Ready(ctx)
}

// Start runs Load in the background. Use Ready to wait for it.
func (db *DB) Start(ctx context.Context) {
	go func() {
		if err := db.Load(ctx); err != nil {
			db.log.Error().Err(err).Msg("catalog load failed")
		}
	}()
}

// Ready blocks until the catalog barrier resolves or ctx is done.
func (db *DB) Ready(ctx context.Context) error {
	select {
	case <-db.ready:
		db.mu.RLock()
		defer db.mu.RUnlock()
		return db.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh refetches every catalog regardless of age. Resolved records for
// names that are still known survive, as do the search and rulings caches.
// A successful refresh also resolves the barrier, clearing an earlier
// load failure.
func (db *DB) Refresh(ctx context.Context) ([]Snapshot, error) {
	snaps, err := db.loadCatalogs(ctx, true)
	if err != nil {
		return nil, err
	}
	db.install(snaps)
	db.loadOnce.Do(func() { close(db.ready) })
	return snaps, nil
}

// Status reports each catalog's snapshot on disk.
func (db *DB) Status() []CatalogStatus {
	return db.store.Status(db.catalogs)
}

// loadCatalogs loads every catalog concurrently. Any hard failure fails the
// whole set.
func (db *DB) loadCatalogs(ctx context.Context, force bool) ([]Snapshot, error) {
	snaps := make([]Snapshot, len(db.catalogs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(db.limit)
	for i, cat := range db.catalogs {
		g.Go(func() error {
			snap, err := db.store.Load(gctx, cat, force)
			if err != nil {
				return err
			}
			db.metrics.catalogLoads.WithLabelValues(cat.ID, string(snap.Source)).Inc()
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// install swaps in freshly loaded catalogs.
func (db *DB) install(snaps []Snapshot) {
	vocab := make(searchquery.Vocabularies)
	var names []string
	for _, snap := range snaps {
		if snap.Catalog.ID == CardNames {
			names = snap.Values
		}
		if id := snap.Catalog.Vocabulary; id != "" {
			vocab[id] = append(vocab[id], snap.Values...)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	index := make(map[string]*model.Card, len(names))
	for _, name := range names {
		index[name] = db.index[name]
	}
	// Names learned from search results stay known.
	for name, card := range db.index {
		if _, ok := index[name]; !ok && card != nil {
			index[name] = card
			names = append(names, name)
		}
	}
	db.index = index
	db.names = names
	db.loadErr = nil
	db.vocab = vocab
	db.snapshots = snaps
	db.log.Debug().Int("names", len(names)).Int("catalogs", len(snaps)).Msg("catalogs installed")
}

// Card resolves a card by its exact name. The first lookup of a known name
// fetches it; later lookups return the same record without a network call.
func (db *DB) Card(ctx context.Context, name string) (*model.Card, error) {
	if err := db.Ready(ctx); err != nil {
		return nil, err
	}

	db.mu.RLock()
	card, known := db.index[name]
	db.mu.RUnlock()
	if !known {
		return nil, &NotFoundError{Name: name}
	}
	db.metrics.lookup("cards", card != nil)
	if card != nil {
		return card, nil
	}

	return coalesce(ctx, &db.flight, "card\x00"+name, func(ctx context.Context) (*model.Card, error) {
		db.mu.RLock()
		card := db.index[name]
		db.mu.RUnlock()
		if card != nil {
			return card, nil
		}

		card, err := db.fetchCard(ctx, name)
		if err != nil {
			return nil, err
		}
		db.mu.Lock()
		db.index[name] = card
		db.mu.Unlock()
		return card, nil
	})
}

func (db *DB) fetchCard(ctx context.Context, name string) (*model.Card, error) {
	if db.cards != nil {
		raw, ok, err := db.cards.Get(ctx, name, db.maxAge)
		if err != nil {
			db.log.Warn().Err(err).Str("card", name).Msg("card cache read failed")
		} else if ok {
			if card, err := model.DecodeCard(raw); err == nil {
				return card, nil
			}
			db.log.Warn().Str("card", name).Msg("discarding undecodable cached card")
		}
	}

	raw, err := db.remote.NamedCard(ctx, name)
	if err != nil {
		return nil, asFetchError("named", name, err)
	}
	card, err := model.DecodeCard(raw)
	if err != nil {
		return nil, &DeserializationError{What: "card " + name, Raw: raw, Err: err}
	}

	if db.cards != nil {
		if err := db.cards.Put(ctx, name, raw); err != nil {
			db.log.Warn().Err(err).Str("card", name).Msg("card cache write failed")
		}
	}
	return card, nil
}

// Known reports whether name is in the name index.
func (db *DB) Known(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.index[name]
	return ok
}

// Names returns a copy of every known card name in catalog order.
func (db *DB) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.names...)
}

// SearchNames ranks every known name against text. It does not wait for the
// catalog barrier; before it resolves there are no names to rank.
func (db *DB) SearchNames(text string) []fuzzy.Match {
	return fuzzy.Filter(text, db.Names())
}

// ClosestName suggests a replacement for an unknown name: the best
// subsequence match, otherwise the most similar name by edit distance.
func (db *DB) ClosestName(name string) (string, bool) {
	names := db.Names()
	if matches := fuzzy.Filter(name, names); len(matches) > 0 && name != "" {
		return matches[0].Value, true
	}
	return fuzzy.Closest(name, names, closestThreshold)
}

// Vocabularies returns the catalog-backed search vocabularies.
func (db *DB) Vocabularies() searchquery.Vocabularies {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(searchquery.Vocabularies, len(db.vocab))
	for id, values := range db.vocab {
		out[id] = append([]string(nil), values...)
	}
	return out
}

// SearchCardsAdvanced runs a structured search and returns the matched card
// names in the remote's order. Results are cached under the exact query
// string, and every returned card is stored in the name index.
func (db *DB) SearchCardsAdvanced(ctx context.Context, query string) ([]string, error) {
	if err := db.Ready(ctx); err != nil {
		return nil, err
	}

	db.mu.RLock()
	names, hit := db.searches[query]
	db.mu.RUnlock()
	db.metrics.lookup("searches", hit)
	if hit {
		return names, nil
	}

	return coalesce(ctx, &db.flight, "search\x00"+query, func(ctx context.Context) ([]string, error) {
		db.mu.RLock()
		names, hit := db.searches[query]
		db.mu.RUnlock()
		if hit {
			return names, nil
		}

		names, cards, err := db.fetchSearch(ctx, query)
		if err != nil {
			return nil, err
		}

		db.mu.Lock()
		defer db.mu.Unlock()
		for _, card := range cards {
			if _, known := db.index[card.Name]; !known {
				db.names = append(db.names, card.Name)
			}
			db.index[card.Name] = card
		}
		db.searches[query] = names
		return names, nil
	})
}

func (db *DB) fetchSearch(ctx context.Context, query string) ([]string, []*model.Card, error) {
	raw, err := db.remote.Search(ctx, query)
	if scryfall.NoMatches(err) {
		return []string{}, nil, nil
	}
	if err != nil {
		return nil, nil, asFetchError("search", query, err)
	}

	var doc struct {
		Data *[]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &DeserializationError{What: "search " + query, Raw: raw, Err: err}
	}
	if doc.Data == nil {
		return nil, nil, &ProtocolError{Op: "search", Input: query, Field: "data"}
	}

	names := make([]string, 0, len(*doc.Data))
	var cards []*model.Card
	for i, item := range *doc.Data {
		card, err := model.DecodeCard(item)
		if err != nil {
			name := probeName(item)
			db.log.Warn().Err(err).Str("query", query).Int("position", i).Str("name", name).
				Msg("skipping undecodable search result")
			names = append(names, name)
			continue
		}
		names = append(names, card.Name)
		if card.Name != "" {
			cards = append(cards, card)
		}
	}
	return names, cards, nil
}

// probeName pulls a name out of a document that failed to decode as a card.
func probeName(raw json.RawMessage) string {
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return doc.Name
}

// Rulings returns the card's rulings. A card without a rulings URI has none
// and never touches the network. It does not wait for the catalog barrier.
func (db *DB) Rulings(ctx context.Context, card *model.Card) ([]model.Ruling, error) {
	if card == nil || card.ID == "" {
		return nil, fmt.Errorf("%w: card has no id", ErrInvalidArgument)
	}
	uri, ok := card.RulingsURI.Get()
	if !ok || uri == "" {
		return []model.Ruling{}, nil
	}

	db.mu.RLock()
	rulings, hit := db.rulings[card.ID]
	db.mu.RUnlock()
	db.metrics.lookup("rulings", hit)
	if hit {
		return rulings, nil
	}

	return coalesce(ctx, &db.flight, "rulings\x00"+card.ID, func(ctx context.Context) ([]model.Ruling, error) {
		db.mu.RLock()
		rulings, hit := db.rulings[card.ID]
		db.mu.RUnlock()
		if hit {
			return rulings, nil
		}

		raw, err := db.remote.Get(ctx, uri)
		if err != nil {
			return nil, asFetchError("rulings", uri, err)
		}
		var probe struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, &DeserializationError{What: "rulings " + card.Name, Raw: raw, Err: err}
		}
		if probe.Data == nil || string(probe.Data) == "null" {
			return nil, &ProtocolError{Op: "rulings", Input: uri, Field: "data"}
		}
		resp, err := model.DecodeRulings(raw)
		if err != nil {
			return nil, &DeserializationError{What: "rulings " + card.Name, Raw: raw, Err: err}
		}
		rulings = resp.Data
		if rulings == nil {
			rulings = []model.Ruling{}
		}

		db.mu.Lock()
		db.rulings[card.ID] = rulings
		db.mu.Unlock()
		return rulings, nil
	})
}

// Snapshots returns the catalogs from the last successful load, sorted by
// catalog id.
func (db *DB) Snapshots() []Snapshot {
	db.mu.RLock()
	out := append([]Snapshot(nil), db.snapshots...)
	db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Catalog.ID < out[j].Catalog.ID })
	return out
}

// coalesce collapses concurrent calls with the same key into one fetch. The
// fetch runs detached from the first caller's cancellation so an abandoned
// caller does not fail the others; each caller still returns when its own
// ctx is done.
func coalesce[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
