package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/scryfall"
	"github.com/mtgcode/mtgls/internal/testutil"
)

var (
	boltCard     = testutil.Card{ID: "bolt", Name: "Lightning Bolt", ManaCost: "{R}", CMC: 1, TypeLine: "Instant", OracleText: "Lightning Bolt deals 3 damage to any target.", USD: "1.00"}
	guideCard    = testutil.Card{ID: "guide", Name: "Goblin Guide", ManaCost: "{R}", CMC: 1, TypeLine: "Creature — Goblin Scout", Power: "2", Toughness: "2", USD: "2.50"}
	mountainCard = testutil.Card{ID: "mountain", Name: "Mountain", TypeLine: "Basic Land — Mountain"}
)

func burnEnv(t *testing.T) *env {
	e := newEnv(t, "Lightning Bolt", "Goblin Guide", "Mountain", "Lava Spike")
	for _, c := range []testutil.Card{boltCard, guideCard, mountainCard} {
		e.api.WithCard(c.Name, c.JSON())
	}
	return e
}

func TestCardJSON(t *testing.T) {
	e := burnEnv(t)

	resp, err := e.runJSON("card", "Lightning", "Bolt")
	require.NoError(t, err)
	require.True(t, resp.OK)

	var result CardResult
	data(t, resp, &result)
	assert.Equal(t, "Lightning Bolt", result.Card.Name)
	assert.Empty(t, result.Rulings)
	assert.Equal(t, 1, e.api.Calls("named"))
}

func TestCardWithRulings(t *testing.T) {
	e := newEnv(t, "Lightning Bolt")
	card := boltCard
	card.RulingsURI = e.api.RulingsURI("bolt")
	e.api.WithCard(card.Name, card.JSON()).
		WithPage(testutil.RulingsPath("bolt"), testutil.RulingsJSON("2004-10-04", "The damage is dealt by Lightning Bolt."))

	resp, err := e.runJSON("card", "Lightning Bolt", "--rulings")
	require.NoError(t, err)

	var result CardResult
	data(t, resp, &result)
	require.Len(t, result.Rulings, 1)
	assert.Equal(t, "2004-10-04", result.Rulings[0].PublishedAt)
}

func TestCardNotFoundSuggestsClosestName(t *testing.T) {
	e := burnEnv(t)

	resp, err := e.runJSON("card", "Lightnig Bolt")
	assert.ErrorIs(t, err, errReported)
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCardNotFound, resp.Error.Code)
	assert.Equal(t, "Did you mean 'Lightning Bolt'?", resp.Error.Suggestion)
	assert.Zero(t, e.api.Calls("named"))
}

func TestCardFetchFailure(t *testing.T) {
	e := burnEnv(t)
	e.api.Fail("named", 500)

	resp, err := e.runJSON("card", "Lightning Bolt")
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrFetchFailed, resp.Error.Code)
}

func TestCatalogUnavailable(t *testing.T) {
	e := burnEnv(t)
	e.api.Fail("catalog", 503)

	resp, err := e.runJSON("card", "Lightning Bolt")
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCatalogUnavailable, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Suggestion)
}

func TestSearchJSONWritesHTMLReport(t *testing.T) {
	e := burnEnv(t)
	e.api.WithSearch("t:goblin", testutil.SearchJSON(guideCard))
	report := filepath.Join(e.dir, "out", "goblins.html")

	resp, err := e.runJSON("search", "t:goblin", "--html", report)
	require.NoError(t, err)

	var result SearchResult
	data(t, resp, &result)
	require.Len(t, result.Cards, 1)
	assert.Equal(t, SearchCard{
		Name:     "Goblin Guide",
		ManaCost: "{R}",
		TypeLine: "Creature — Goblin Scout",
		USD:      "2.50",
		EUR:      "-",
	}, result.Cards[0])
	assert.Equal(t, report, result.HTML)
	assert.Zero(t, e.api.Calls("named"), "search results seed the card records")

	page, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Search: t:goblin</title>")
	assert.Contains(t, string(page), "Goblin Guide")
}

func TestSearchWithoutMatchesIsEmpty(t *testing.T) {
	e := burnEnv(t)

	resp, err := e.runJSON("search", "t:nothing")
	require.NoError(t, err)

	var result SearchResult
	data(t, resp, &result)
	assert.Empty(t, result.Cards)
	assert.NotNil(t, result.Cards)
}

func TestCompleteOfflineUsesRegistry(t *testing.T) {
	e := newEnv(t)

	resp, err := e.runJSON("complete", "typ", "--offline")
	require.NoError(t, err)

	var result CompleteResult
	data(t, resp, &result)
	assert.Equal(t, 3, result.Cursor)
	assert.False(t, result.Vocabulary)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "type", result.Candidates[0].Label)
	assert.Zero(t, e.api.TotalCalls())
}

func TestCompleteRejectsCursorPastEnd(t *testing.T) {
	e := newEnv(t)

	resp, err := e.runJSON("complete", "t:gob", "9", "--offline")
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidInput, resp.Error.Code)
}

func TestCheckReportsUnknownCards(t *testing.T) {
	e := burnEnv(t)
	e.file("decks/burn.deck", "// Burn\n4 Lightning Bolt\n4 Lightnig Bolt\n")
	e.file("decks/modern/guide.txt", "4 Goblin Guide\n")
	e.file("decks/notes.md", "4 Not A Card\n")

	resp, err := e.runJSON("check", filepath.Join(e.dir, "decks"))
	assert.ErrorIs(t, err, errReported, "unknown cards fail the check")
	require.True(t, resp.OK)

	var result CheckResult
	data(t, resp, &result)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 3, result.Cards)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, Issue{
		File:       filepath.Join(e.dir, "decks", "burn.deck"),
		Line:       3,
		Column:     3,
		Name:       "Lightnig Bolt",
		Suggestion: "Lightning Bolt",
	}, result.Issues[0])
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, WarnUnknownCard, resp.Warnings[0].Code)
	assert.Zero(t, e.api.Calls("named"), "checking never fetches cards")
}

func TestCheckCleanDeckSucceeds(t *testing.T) {
	e := burnEnv(t)
	path := e.file("burn.deck", "4 Lightning Bolt\n20 Mountain\n")

	out, err := e.run("check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No unknown cards in 1 file(s).")
}

func TestCheckMissingFile(t *testing.T) {
	e := burnEnv(t)

	resp, err := e.runJSON("check", filepath.Join(e.dir, "missing.deck"))
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrFileReadError, resp.Error.Code)
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.deck", "b.txt", "sub/c.dek", "sub/d.md"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := expandPatterns([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.deck"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "sub", "c.dek"),
	}, files)

	files, err = expandPatterns([]string{filepath.Join(dir, "**", "*.dek"), filepath.Join(dir, "sub", "c.dek")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "sub", "c.dek")}, files, "duplicates collapse")

	files, err = expandPatterns([]string{filepath.Join(dir, "missing.deck"), filepath.Join(dir, "*.none")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "missing.deck")}, files, "literal paths are kept, empty globs are not")
}

func TestStatsJSON(t *testing.T) {
	e := burnEnv(t)
	path := e.file("burn.deck", "// Spells\n4 Lightning Bolt\n4 Goblin Guide\n20 Mountain\n4 Lava Spike\n1 Nope\n")

	resp, err := e.runJSON("stats", path)
	require.NoError(t, err)

	var result StatsResult
	data(t, resp, &result)
	assert.Equal(t, 33, result.Cards)
	assert.Equal(t, []int{0, 8}, result.Curve)
	assert.InDelta(t, 1.0, result.MeanManaValue, 0.001)
	assert.Equal(t, 5, result.Unresolved)
	assert.ElementsMatch(t, []string{"Lava Spike", "Nope"}, result.UnresolvedNames)
	assert.Len(t, resp.Warnings, 2)
}

func TestStatsText(t *testing.T) {
	e := burnEnv(t)
	path := e.file("burn.deck", "4 Lightning Bolt\n20 Mountain\n")

	out, err := e.run("stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "24")
	assert.Contains(t, out, "0 | 4")
	assert.Contains(t, out, "1.00")
}

func TestCatalogRefreshThenStatus(t *testing.T) {
	e := burnEnv(t)

	resp, err := e.runJSON("catalog", "status")
	require.NoError(t, err)
	var status CatalogStatusResult
	data(t, resp, &status)
	require.Len(t, status.Catalogs, len(carddb.Catalogs))
	for _, st := range status.Catalogs {
		assert.False(t, st.Exists, st.ID)
	}
	assert.Zero(t, e.api.TotalCalls(), "status never touches the network")

	resp, err = e.runJSON("catalog", "refresh")
	require.NoError(t, err)
	var refreshed struct {
		Catalogs []RefreshedCatalog `json:"catalogs"`
	}
	data(t, resp, &refreshed)
	require.Len(t, refreshed.Catalogs, len(carddb.Catalogs))
	for _, c := range refreshed.Catalogs {
		assert.Equal(t, carddb.SourceRemote, c.Source, c.ID)
	}

	resp, err = e.runJSON("catalog", "status")
	require.NoError(t, err)
	data(t, resp, &status)
	for _, st := range status.Catalogs {
		assert.True(t, st.Exists, st.ID)
		assert.False(t, st.Stale, st.ID)
	}
	assert.Nil(t, status.CardCache)
}

func TestCatalogPruneRequiresCardCache(t *testing.T) {
	e := newEnv(t)

	resp, err := e.runJSON("catalog", "prune")
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidInput, resp.Error.Code)
}

func TestCardCacheServesLaterRuns(t *testing.T) {
	e := burnEnv(t)
	e.file("config.toml", "requests_per_second = 0\nmax_retries = 0\ncard_cache = true\n")

	_, err := e.runJSON("card", "Lightning Bolt")
	require.NoError(t, err)
	_, err = e.runJSON("card", "Lightning Bolt")
	require.NoError(t, err)
	assert.Equal(t, 1, e.api.Calls("named"), "second run reads the SQLite cache")

	resp, err := e.runJSON("catalog", "status")
	require.NoError(t, err)
	var status CatalogStatusResult
	data(t, resp, &status)
	require.NotNil(t, status.CardCache)
	assert.Equal(t, 1, status.CardCache.Cards)

	resp, err = e.runJSON("catalog", "prune")
	require.NoError(t, err)
	var pruned map[string]int
	data(t, resp, &pruned)
	assert.Equal(t, 0, pruned["removed"])
}

func TestInvalidConfigIsReported(t *testing.T) {
	e := newEnv(t)
	e.file("config.toml", "log_level = \"loud\"\n")

	resp, err := e.runJSON("stats", "burn.deck")
	assert.ErrorIs(t, err, errReported)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrConfigInvalid, resp.Error.Code)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&carddb.NotFoundError{Name: "Nope"}, ErrCardNotFound},
		{&scryfall.FetchError{Op: "named", Status: 500, Err: errors.New("boom")}, ErrFetchFailed},
		{&carddb.DeserializationError{What: "card", Err: errors.New("bad json")}, ErrDeserializeFailed},
		{&carddb.ProtocolError{Op: "search", Field: "data"}, ErrProtocolError},
		{fmt.Errorf("rulings: %w", carddb.ErrInvalidArgument), ErrInvalidInput},
		{&carddb.CatalogError{Catalog: "card-names", ReadErr: os.ErrNotExist, FetchErr: &scryfall.FetchError{Err: errors.New("down")}}, ErrCatalogUnavailable},
		{fmt.Errorf("open: %w", os.ErrNotExist), ErrFileReadError},
		{errors.New("anything else"), ErrInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), "%v", tt.err)
	}
}
