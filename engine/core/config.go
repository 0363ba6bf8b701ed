package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendNull   string = "null"
	BackendVulkan string = "vulkan"
)

type LogConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

type DeviceConfig struct {
	/** @brief Which native backend replays command streams: null or vulkan. */
	Backend string `toml:"backend"`
	/** @brief Enables the Vulkan validation layer when present. */
	Validation bool `toml:"validation"`
	/** @brief Null backend only: submissions complete immediately. */
	AutoComplete bool `toml:"auto_complete"`
	/** @brief Application name reported to the native driver. */
	ApplicationName string `toml:"application_name"`
}

type MemoryConfig struct {
	/** @brief Size of a regular sub-allocation block. */
	BlockSize uint64 `toml:"block_size"`
	/** @brief Requests at least this large get a block of their own. */
	DedicatedThreshold uint64 `toml:"dedicated_threshold"`
}

type Config struct {
	Log    LogConfig    `toml:"log"`
	Device DeviceConfig `toml:"device"`
	Memory MemoryConfig `toml:"memory"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Device: DeviceConfig{
			Backend:         BackendNull,
			AutoComplete:    true,
			ApplicationName: "gpucore",
		},
		Memory: MemoryConfig{
			BlockSize:          8 << 20,
			DedicatedThreshold: 4 << 20,
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config '%s'", path)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Device.Backend {
	case BackendNull, BackendVulkan:
	default:
		return errors.Newf("unknown backend '%s'", c.Device.Backend)
	}
	if c.Memory.BlockSize == 0 {
		return errors.New("memory.block_size must be greater than zero")
	}
	if c.Memory.DedicatedThreshold == 0 || c.Memory.DedicatedThreshold > c.Memory.BlockSize {
		c.Memory.DedicatedThreshold = c.Memory.BlockSize
	}
	return nil
}
