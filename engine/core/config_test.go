package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, BackendNull, cfg.Device.Backend)
	assert.True(t, cfg.Device.AutoComplete)
	assert.Equal(t, uint64(8<<20), cfg.Memory.BlockSize)
	assert.Equal(t, uint64(4<<20), cfg.Memory.DedicatedThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[log]
level = "debug"

[device]
backend = "vulkan"
validation = true

[memory]
block_size = 1024
dedicated_threshold = 4096
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendVulkan, cfg.Device.Backend)
	assert.True(t, cfg.Device.Validation)
	assert.Equal(t, uint64(1024), cfg.Memory.BlockSize)
	// clamped to the block size
	assert.Equal(t, uint64(1024), cfg.Memory.DedicatedThreshold)
}

func TestParseConfigRejectsUnknownBackend(t *testing.T) {
	_, err := ParseConfig([]byte("[device]\nbackend = \"metal\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metal")
}

func TestParseConfigRejectsBadToml(t *testing.T) {
	_, err := ParseConfig([]byte("[device\n"))
	require.Error(t, err)
}

func TestWatchConfigReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpucore.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	changes := make(chan *Config, 4)
	w, err := WatchConfig(path, func(c *Config) { changes <- c })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0o644))

	// A write may be observed as a truncate followed by the content.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Log.Level == "warn" {
				return
			}
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}
