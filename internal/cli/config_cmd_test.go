package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtgcode/mtgls/internal/config"
)

func TestConfigInitCreatesDefault(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "fresh", "config.toml")

	out, err := runCLI(t, "config", "init", "--config", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"created": true`)

	c, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)

	out, err = runCLI(t, "config", "init", "--config", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"created": false`)
}

func TestConfigSetPersistsValue(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "config.toml")

	resp, err := e.runJSON("config", "set", "max_catalog_age", "72h")
	require.NoError(t, err)
	var got map[string]any
	data(t, resp, &got)
	assert.Equal(t, "max_catalog_age", got["changed"])
	assert.Equal(t, "72h0m0s", got["max_catalog_age"])

	c, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "72h0m0s", c.MaxCatalogAge.String())
	assert.Zero(t, c.MaxRetries, "existing values survive")
}

func TestConfigSetRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	before, err := os.ReadFile(filepath.Join(e.dir, "config.toml"))
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "editor", "vim"}},
		{"bad duration", []string{"config", "set", "request_timeout", "soon"}},
		{"bad level", []string{"config", "set", "log_level", "loud"}},
		{"bad boolean", []string{"config", "set", "card_cache", "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.runJSON(tt.args...)
			assert.ErrorIs(t, err, errReported)
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrInvalidInput, resp.Error.Code)
		})
	}

	after, err := os.ReadFile(filepath.Join(e.dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestConfigShowAppliesEnvAndFlags(t *testing.T) {
	e := newEnv(t)
	e.file(".env", "MTGLS_CARD_CACHE=true\n")

	resp, err := e.runJSON("config")
	require.NoError(t, err)
	var got map[string]any
	data(t, resp, &got)
	assert.Equal(t, true, got["exists"])
	assert.Equal(t, true, got["card_cache"])
	assert.Equal(t, e.dataDir, got["data_dir"])
	assert.Equal(t, e.api.URL(), got["api_base_url"])
}
