package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default tunables referenced across the runtime (§4.4, §6.2).
const (
	DefaultMaxMessageSize   = 10 * 1024 * 1024
	DefaultStdioBufferSize  = 64 * 1024
	DefaultEventCardinality = 10000
	DefaultHandlerTimeoutMs = 30000
	DefaultHandlerMaxBytes  = 10 * 1024 * 1024
	DefaultTimerIntervalMs  = 100
)

// Load reads and parses a scenario YAML file from disk. YAML schema
// validation beyond basic unmarshaling is an external collaborator per §1;
// this is the minimal loader the CLI's "external collaborator" wraps.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario yaml: %w", err)
	}
	return &cfg, nil
}
