// Package config loads the service configuration and the printers
// inventory file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

// Config represents the complete service configuration
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServiceConfig contains service identification
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig contains HTTP server settings
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// CloudConfig contains the fleet-wide cloud account inputs. The bearer
// token is obtained by an external sign-in flow; this service only
// consumes it.
type CloudConfig struct {
	Token string `mapstructure:"token"`
}

// FleetConfig contains supervisor settings
type FleetConfig struct {
	PrintersFile string `mapstructure:"printers_file"`
	BufferSize   int    `mapstructure:"buffer_size"`
}

// ReconnectConfig tunes the per-printer reconnect loop
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads and parses the configuration file. Environment variables
// with the PRINTWATCH_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("service.name", "printwatch")
	v.SetDefault("service.environment", "development")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("fleet.printers_file", "printers.yaml")
	v.SetDefault("fleet.buffer_size", 1024)
	v.SetDefault("reconnect.initial_delay", 500*time.Millisecond)
	v.SetDefault("reconnect.max_delay", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("PRINTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http port out of range: %d", cfg.HTTP.Port)
	}
	if cfg.Fleet.BufferSize < 1 {
		return fmt.Errorf("fleet buffer_size must be at least 1")
	}
	if cfg.Reconnect.InitialDelay <= 0 {
		return fmt.Errorf("reconnect initial_delay must be positive")
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect max_delay cannot be below initial_delay")
	}
	return nil
}

// printersFile is the on-disk shape of the printers inventory.
type printersFile struct {
	Printers []domain.PrinterConfig `yaml:"printers"`
}

// LoadPrinters reads the printers inventory file and validates every entry.
func LoadPrinters(path string) ([]domain.PrinterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read printers file: %w", err)
	}

	var f printersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse printers file: %w", err)
	}

	seen := make(map[domain.DeviceID]struct{}, len(f.Printers))
	for i := range f.Printers {
		p := &f.Printers[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("printer %q: %w", p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("printer %q: %w", p.ID, domain.ErrPrinterExists)
		}
		seen[p.ID] = struct{}{}
	}

	return f.Printers, nil
}
