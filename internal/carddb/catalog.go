package carddb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"github.com/mtgcode/mtgls/internal/atomicfile"
)

// Catalog is one reference list mirrored from the remote API.
type Catalog struct {
	ID         string // stable identity, also the snapshot file stem
	Endpoint   string // path below the API root
	Vocabulary string // search vocabulary fed by this catalog, if any
	Objects    bool   // data is a list of objects with a "name" field
}

// CardNames is the catalog that seeds the name index.
const CardNames = "card-names"

// Catalogs is the fixed set loaded at startup.
var Catalogs = []Catalog{
	{ID: CardNames, Endpoint: "catalog/card-names"},
	{ID: "artist-names", Endpoint: "catalog/artist-names", Vocabulary: "artists"},
	{ID: "artifact-types", Endpoint: "catalog/artifact-types", Vocabulary: "types"},
	{ID: "enchantment-types", Endpoint: "catalog/enchantment-types", Vocabulary: "types"},
	{ID: "land-types", Endpoint: "catalog/land-types", Vocabulary: "types"},
	{ID: "spell-types", Endpoint: "catalog/spell-types", Vocabulary: "types"},
	{ID: "planeswalker-types", Endpoint: "catalog/planeswalker-types", Vocabulary: "types"},
	{ID: "creature-types", Endpoint: "catalog/creature-types", Vocabulary: "types"},
	{ID: "powers", Endpoint: "catalog/powers", Vocabulary: "powers"},
	{ID: "toughnesses", Endpoint: "catalog/toughnesses", Vocabulary: "toughnesses"},
	{ID: "loyalties", Endpoint: "catalog/loyalties", Vocabulary: "loyalties"},
	{ID: "watermarks", Endpoint: "catalog/watermarks", Vocabulary: "watermarks"},
	{ID: "keyword-abilities", Endpoint: "catalog/keyword-abilities", Vocabulary: "keywords"},
	{ID: "keyword-actions", Endpoint: "catalog/keyword-actions", Vocabulary: "keywords"},
	{ID: "ability-words", Endpoint: "catalog/ability-words", Vocabulary: "keywords"},
	{ID: "sets", Endpoint: "sets", Vocabulary: "sets", Objects: true},
}

// Source says where a snapshot's values came from.
type Source string

const (
	SourceLocal  Source = "local"  // fresh snapshot, no network
	SourceRemote Source = "remote" // fetched and persisted
	SourceStale  Source = "stale"  // fetch failed, stale snapshot used
)

// Snapshot is a loaded catalog.
type Snapshot struct {
	Catalog Catalog
	Values  []string
	Path    string
	Source  Source
}

// CatalogStatus describes a snapshot on disk without loading it.
type CatalogStatus struct {
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	Exists    bool          `json:"exists"`
	UpdatedAt time.Time     `json:"updated_at,omitzero"`
	Age       time.Duration `json:"age"`
	Stale     bool          `json:"stale"`
}

// CatalogStore loads catalogs from snapshot files under Dir, going to the
// remote when a snapshot is missing, stale, or unreadable.
type CatalogStore struct {
	Remote Remote
	Dir    string
	MaxAge time.Duration
	Now    func() time.Time
	Log    zerolog.Logger
}

// Path returns the snapshot file for a catalog.
func (s *CatalogStore) Path(cat Catalog) string {
	return filepath.Join(s.Dir, slug.Make(cat.ID)+".json")
}

func (s *CatalogStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Load returns the catalog's values.
//
//   - No snapshot: fetch; failure is fatal and names both causes.
//   - Fresh snapshot: read it with no network call. If it cannot be read,
//     fetch instead; failure is fatal.
//   - Stale snapshot, or force: fetch. On failure fall back to the snapshot;
//     fatal only if it cannot be read either.
//
// A fetched payload is persisted atomically. Persist failures are logged and
// the fetched values are still returned.
func (s *CatalogStore) Load(ctx context.Context, cat Catalog, force bool) (Snapshot, error) {
	path := s.Path(cat)
	snap := Snapshot{Catalog: cat, Path: path}
	log := s.Log.With().Str("catalog", cat.ID).Logger()

	info, statErr := os.Stat(path)
	if statErr != nil {
		values, err := s.fetch(ctx, cat, path)
		if err != nil {
			return snap, &CatalogError{Catalog: cat.ID, Path: path, ReadErr: statErr, FetchErr: err}
		}
		snap.Values, snap.Source = values, SourceRemote
		return snap, nil
	}

	age := s.now().Sub(info.ModTime())
	if !force && age <= s.MaxAge {
		values, readErr := readSnapshot(cat, path)
		if readErr == nil {
			snap.Values, snap.Source = values, SourceLocal
			return snap, nil
		}
		log.Warn().Err(readErr).Msg("fresh snapshot unreadable, refetching")
		values, err := s.fetch(ctx, cat, path)
		if err != nil {
			return snap, &CatalogError{Catalog: cat.ID, Path: path, ReadErr: readErr, FetchErr: err}
		}
		snap.Values, snap.Source = values, SourceRemote
		return snap, nil
	}

	values, fetchErr := s.fetch(ctx, cat, path)
	if fetchErr == nil {
		snap.Values, snap.Source = values, SourceRemote
		return snap, nil
	}
	log.Warn().Err(fetchErr).Dur("age", age).Msg("catalog fetch failed, using stale snapshot")
	values, readErr := readSnapshot(cat, path)
	if readErr != nil {
		return snap, &CatalogError{Catalog: cat.ID, Path: path, ReadErr: readErr, FetchErr: fetchErr}
	}
	snap.Values, snap.Source = values, SourceStale
	return snap, nil
}

// fetch downloads and parses a catalog, then persists the raw payload.
func (s *CatalogStore) fetch(ctx context.Context, cat Catalog, path string) ([]string, error) {
	raw, err := s.Remote.Catalog(ctx, cat.Endpoint)
	if err != nil {
		return nil, asFetchError("catalog", cat.Endpoint, err)
	}
	values, err := parseCatalog(cat, raw)
	if err != nil {
		return nil, err
	}
	if err := atomicfile.WriteFile(path, raw, 0o644); err != nil {
		s.Log.Warn().Err(err).Str("catalog", cat.ID).Str("path", path).Msg("failed to persist catalog snapshot")
	}
	return values, nil
}

// Status reports each catalog's snapshot without touching the network.
func (s *CatalogStore) Status(cats []Catalog) []CatalogStatus {
	now := s.now()
	out := make([]CatalogStatus, 0, len(cats))
	for _, cat := range cats {
		st := CatalogStatus{ID: cat.ID, Path: s.Path(cat)}
		if info, err := os.Stat(st.Path); err == nil {
			st.Exists = true
			st.UpdatedAt = info.ModTime()
			st.Age = now.Sub(st.UpdatedAt)
			st.Stale = st.Age > s.MaxAge
		}
		out = append(out, st)
	}
	return out
}

func readSnapshot(cat Catalog, path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCatalog(cat, raw)
}

// parseCatalog decodes {"data": [...]}. For object catalogs the values are
// each object's name.
func parseCatalog(cat Catalog, raw []byte) ([]string, error) {
	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DeserializationError{What: "catalog " + cat.ID, Raw: raw, Err: err}
	}
	if doc.Data == nil || string(doc.Data) == "null" {
		return nil, &ProtocolError{Op: "catalog", Input: cat.Endpoint, Field: "data"}
	}

	if !cat.Objects {
		var values []string
		if err := json.Unmarshal(doc.Data, &values); err != nil {
			return nil, &DeserializationError{What: "catalog " + cat.ID, Raw: raw, Err: err}
		}
		return values, nil
	}

	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc.Data, &objects); err != nil {
		return nil, &DeserializationError{What: "catalog " + cat.ID, Raw: raw, Err: err}
	}
	values := make([]string, 0, len(objects))
	for _, o := range objects {
		if o.Name != "" {
			values = append(values, o.Name)
		}
	}
	return values, nil
}
