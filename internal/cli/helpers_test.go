package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/mtgcode/mtgls/internal/carddb"
	"github.com/mtgcode/mtgls/internal/testutil"
)

// runCLI executes the command tree in-process and returns what it wrote
// to stdout. Flags and resolved globals are reset first.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	logger = zerolog.Nop()

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// env isolates a CLI run from the user's config, environment and cache,
// pointing it at a fake card API.
type env struct {
	t       *testing.T
	api     *testutil.FakeAPI
	dir     string
	dataDir string
}

func newEnv(t *testing.T, cardNames ...string) *env {
	t.Helper()
	for _, key := range []string{"DATA_DIR", "API_BASE_URL", "LOG_LEVEL", "CARD_CACHE", "MAX_CATALOG_AGE"} {
		t.Setenv("MTGLS_"+key, "")
		require.NoError(t, os.Unsetenv("MTGLS_"+key))
	}
	dir := t.TempDir()
	api := testutil.NewFakeAPI(t)
	for _, cat := range carddb.Catalogs {
		switch {
		case cat.ID == carddb.CardNames:
			api.WithRawCatalog(cat.Endpoint, testutil.CatalogJSON(cardNames...))
		case cat.Objects:
			api.WithRawCatalog(cat.Endpoint, testutil.SetsJSON("Alpha"))
		default:
			api.WithRawCatalog(cat.Endpoint, testutil.CatalogJSON())
		}
	}
	e := &env{t: t, api: api, dir: dir, dataDir: filepath.Join(dir, "data")}
	e.file("config.toml", "requests_per_second = 0\nmax_retries = 0\n")
	return e
}

// file writes content under the env's directory and returns its path.
func (e *env) file(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *env) run(args ...string) (string, error) {
	e.t.Helper()
	base := []string{
		"--config", filepath.Join(e.dir, "config.toml"),
		"--env-file", filepath.Join(e.dir, ".env"),
		"--data-dir", e.dataDir,
		"--api-base-url", e.api.URL(),
	}
	return runCLI(e.t, append(base, args...)...)
}

// runJSON runs args with --json and decodes the envelope.
func (e *env) runJSON(args ...string) (Response, error) {
	e.t.Helper()
	out, err := e.run(append(args, "--json")...)
	var resp Response
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

// data re-decodes resp.Data into v.
func data(t *testing.T, resp Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
