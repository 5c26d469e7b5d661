// Package config loads bridge configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "2s" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// HomeAssistant holds the connection settings for the platform behind the
// bridge.
type HomeAssistant struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Config is the full bridge configuration.
type Config struct {
	ListenPort     int           `yaml:"listen_port"`
	AdvertiseIP    string        `yaml:"advertise_ip"`
	AdvertisePort  int           `yaml:"advertise_port"`
	StoragePath    string        `yaml:"storage_path"`
	LogLevel       string        `yaml:"log_level"`
	StateCacheTTL  Duration      `yaml:"state_cache_ttl"`
	ConfirmTimeout Duration      `yaml:"confirm_timeout"`
	HomeAssistant  HomeAssistant `yaml:"home_assistant"`
}

// Default returns the configuration used when a field is absent from the
// file.
func Default() Config {
	return Config{
		ListenPort:     80,
		StoragePath:    "devices.json",
		LogLevel:       "info",
		StateCacheTTL:  Duration(2 * time.Second),
		ConfirmTimeout: Duration(5 * time.Second),
		HomeAssistant: HomeAssistant{
			URL: "http://localhost:8123",
		},
	}
}

// Load reads the file at path over the defaults. The CONFIG_PATH
// environment variable overrides path when set.
func Load(path string) (Config, error) {
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		path = env
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.AdvertisePort == 0 {
		cfg.AdvertisePort = cfg.ListenPort
	}
	return cfg, nil
}
