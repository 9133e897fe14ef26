// Package config loads server configuration from a TOML file.
//
// All fields have working defaults so the server runs with no config file
// at all; command-line flags override whatever the file provides.
package config

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Sections SectionsConfig `toml:"sections"`
	Window   WindowConfig   `toml:"window"`
}

// ServerConfig configures the HTTP server and its database.
type ServerConfig struct {
	Port        int      `toml:"port"`
	DBPath      string   `toml:"db_path"`
	CORSOrigins []string `toml:"cors_origins"`
}

// SectionsConfig pins the section selector behavior. Order, when set, is
// the canonical section list served for every sheet regardless of what
// rows exist; Flat names sections that carry no subsections in the
// interface and always report the "(none)" placeholder.
type SectionsConfig struct {
	Order []string `toml:"order"`
	Flat  []string `toml:"flat"`
}

// WindowConfig sets the default day window served when a block request
// omits the range.
type WindowConfig struct {
	StartDay int `toml:"start_day"`
	EndDay   int `toml:"end_day"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			DBPath:      "schedule.db",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Sections: SectionsConfig{
			Order: []string{
				"Outside",
				"Ground Floor",
				"1st Floor",
				"Roof",
				"Waste Removal",
				"Staffing expenses",
				"Staffing Needed",
			},
			Flat: []string{"Roof", "Staffing expenses"},
		},
		Window: WindowConfig{StartDay: 1, EndDay: 14},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsFlat reports whether a section is configured to have no subsections.
func (c *Config) IsFlat(section string) bool {
	for _, s := range c.Sections.Flat {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(section)) {
			return true
		}
	}
	return false
}
