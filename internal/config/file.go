package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/goccy/go-yaml"
)

// FileConfig contains settings loaded from the optional YAML config file.
type FileConfig struct {
	// Relays is the ordered set of relay endpoints used for broadcasts.
	Relays []string `yaml:"relays"`
}

// Validate performs validation of a FileConfig value:
// - Checks that relay URLs parse and use a websocket scheme
// - Checks for duplicates in the relay list
func (cfg *FileConfig) Validate() error {
	seen := make(map[string]struct{}, len(cfg.Relays))

	for _, relay := range cfg.Relays {
		if _, ok := seen[relay]; ok {
			return fmt.Errorf("duplicate relay %q in config", relay)
		}
		seen[relay] = struct{}{}

		u, err := url.Parse(relay)
		if err != nil {
			return fmt.Errorf("bad relay URL %q: %w", relay, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("bad relay URL %q: scheme must be ws or wss", relay)
		}
	}

	return nil
}

// loadFileConfig reads and validates the YAML config file.
// A missing file is not an error; it returns (nil, nil).
func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
