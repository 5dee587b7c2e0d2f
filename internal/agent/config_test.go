package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:10040", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:10041", cfg.MetricsAddr)
	assert.Equal(t, "/etc/corefreq", cfg.TableDir)
	assert.True(t, cfg.WatchTables)
	assert.Equal(t, 0, cfg.Verbosity)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listenAddr: "0.0.0.0:9000"
tableDir: /run/corefreq
watchTables: false
verbosity: 5
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "/run/corefreq", cfg.TableDir)
	assert.False(t, cfg.WatchTables)
	assert.Equal(t, 5, cfg.Verbosity)
	// untouched keys keep their defaults
	assert.Equal(t, "127.0.0.1:10041", cfg.MetricsAddr)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("COREFREQ_LISTENADDR", "0.0.0.0:8000")
	t.Setenv("COREFREQ_VERBOSITY", "3")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.Verbosity)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
