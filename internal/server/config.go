package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds engine defaults that tool arguments may override per call.
type Config struct {
	// PixelSizeUM is the pixel pitch in microns used for reported positions.
	PixelSizeUM float64 `toml:"pixel_size_um"`

	// YieldInterval is the number of components between host yields.
	YieldInterval int `toml:"yield_interval"`

	// MaxComponents caps the spots one extraction may accept.
	MaxComponents int `toml:"max_components"`

	// DefaultSortCode ranks spots when a call gives no sort code.
	DefaultSortCode int `toml:"default_sort_code"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		PixelSizeUM:     10,
		YieldInterval:   1000,
		MaxComponents:   1000000,
		DefaultSortCode: 1,
	}
}

// LoadConfig starts from DefaultConfig, overlays the TOML file at path (if
// path is not empty) and then the SPOT_MCP_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if v := os.Getenv("SPOT_MCP_PIXEL_SIZE_UM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("SPOT_MCP_PIXEL_SIZE_UM: %w", err)
		}
		cfg.PixelSizeUM = f
	}
	if v := os.Getenv("SPOT_MCP_MAX_COMPONENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("SPOT_MCP_MAX_COMPONENTS: %w", err)
		}
		cfg.MaxComponents = n
	}
	if cfg.PixelSizeUM <= 0 {
		return cfg, fmt.Errorf("pixel size %g must be positive", cfg.PixelSizeUM)
	}
	return cfg, nil
}
