package log

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// LogConfig describes the optional logging config file. Each filter
// entry is a zapfilter rule scoping a level to logger namespaces, for
// example "debug:service,cache.*".
type LogConfig struct {
	Filters      []string `yaml:"filters"`
	DefaultLevel string   `yaml:"defaultLevel"`
}

// LoadConfig reads a logging config file and installs the contained
// filter rules. Returns the parsed config so callers can pick up the
// default level.
func LoadConfig(path string) (*LogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log config: %w", err)
	}
	var cfg LogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse log config: %w", err)
	}
	rules := strings.Join(cfg.Filters, " ")
	if rules != "" {
		if _, err := zapfilter.ParseRules(rules); err != nil {
			return nil, fmt.Errorf("invalid filter rules %q: %w", rules, err)
		}
		SetFilterRules(rules)
	}
	return &cfg, nil
}
