package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 9090
db_path = "/tmp/test.db"

[window]
start_day = 1
end_day = 7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Server.DBPath)
	assert.Equal(t, 7, cfg.Window.EndDay)
	// Sections keep their defaults when the file omits them.
	assert.Equal(t, Default().Sections.Order, cfg.Sections.Order)
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestIsFlat_CaseInsensitive(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsFlat("Roof"))
	assert.True(t, cfg.IsFlat(" roof "))
	assert.True(t, cfg.IsFlat("STAFFING EXPENSES"))
	assert.False(t, cfg.IsFlat("Ground Floor"))
}
