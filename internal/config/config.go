// Package config handles configuration loading for the LocusView server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/plot"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
	Plots  []PlotConfig `yaml:"plots"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Title       string   `yaml:"title"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	DataEntries     int `yaml:"data_entries"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// PlotConfig declares one served plot: a named layout template, the
// initial region and the ordered data sources. Source order is the
// resolution order, so sources that join against another namespace must
// be declared after it.
type PlotConfig struct {
	ID      string                        `yaml:"id"`
	Layout  string                        `yaml:"layout"`
	State   plot.Region                   `yaml:"state"`
	Sources []datasources.NamespaceConfig `yaml:"sources"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration: one plot with the
// standard association layout backed by the UM PortalDev API.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Cache: CacheConfig{
			ImageSizeMB:     256,
			ImageTTLMinutes: 10,
			DataEntries:     256,
		},
		Log: LogConfig{
			Level: "info",
		},
		Plots: []PlotConfig{
			{
				ID:     "default",
				Layout: "standard_association",
				State:  plot.Region{Chrom: "10", Start: 114550452, End: 115067678},
				Sources: []datasources.NamespaceConfig{
					{
						Namespace: "assoc",
						SourceConfig: datasources.SourceConfig{
							Type:   "AssociationLZ",
							URL:    "https://portaldev.sph.umich.edu/api/v1/statistic/single/results/",
							Params: map[string]string{"analysis": "45"},
						},
					},
					{
						Namespace: "ld",
						SourceConfig: datasources.SourceConfig{
							Type: "LDLZ",
							URL:  "https://portaldev.sph.umich.edu/api/v1/pair/LD/results/",
						},
					},
					{
						Namespace: "recomb",
						SourceConfig: datasources.SourceConfig{
							Type: "RecombLZ",
							URL:  "https://portaldev.sph.umich.edu/api/v1/annotation/recomb/results/",
						},
					},
					{
						Namespace: "gene",
						SourceConfig: datasources.SourceConfig{
							Type:   "GeneLZ",
							URL:    "https://portaldev.sph.umich.edu/api/v1/annotation/genes/",
							Params: map[string]string{"build": "GRCh37"},
						},
					},
				},
			},
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.DataEntries == 0 {
		cfg.Cache.DataEntries = defaults.Cache.DataEntries
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if len(cfg.Plots) == 0 {
		cfg.Plots = defaults.Plots
	}
	for i := range cfg.Plots {
		if cfg.Plots[i].Layout == "" {
			cfg.Plots[i].Layout = "standard_association"
		}
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Plots))
	for _, pc := range cfg.Plots {
		if pc.ID == "" {
			return fmt.Errorf("plot entry with empty id")
		}
		if _, dup := seen[pc.ID]; dup {
			return fmt.Errorf("duplicate plot id %q", pc.ID)
		}
		seen[pc.ID] = struct{}{}
	}
	return nil
}
