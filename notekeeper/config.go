package notekeeper

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all notekeeper configuration.
type Config struct {
	DBPath string      `yaml:"db_path"`
	Watch  WatchConfig `yaml:"watch"`
}

// WatchConfig controls the storage change watcher that feeds live note
// updates to connected clients.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "webmark.db"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
