package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/topdogsports/draftroom/go/internal/draftroom/scheduler"
)

// Config is the draftroomd configuration file. Every field has a
// working default, so the file itself is optional.
type Config struct {
	Store struct {
		// Backend is "postgres" or "memory". Memory exists for local
		// development; rooms vanish on restart.
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	NATS struct {
		// Enabled false swaps in the no-op publisher and skips the
		// gateway event consumer.
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Scheduler scheduler.Config `yaml:"scheduler"`
}

func defaultConfig() *Config {
	config := &Config{Scheduler: scheduler.DefaultConfig()}
	config.Store.Backend = "memory"
	config.NATS.Enabled = false
	config.NATS.URL = "nats://localhost:4222"
	config.NATS.StreamName = "ROOM_EVENTS"
	config.NATS.SubjectPrefix = "room.events"
	return config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
