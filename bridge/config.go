package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tailored-agentic-units/toolbridge/fabric"
)

const (
	defaultListenAddr    = ":8080"
	defaultClientAddress = "bridge-client"
	defaultTimeoutMS     = 90000
)

// Config holds initialization parameters for a bridge process: where to
// reach the serving agent, where to listen, and the fabric section for the
// client's own endpoint.
type Config struct {
	// TargetAddress is the serving agent's fabric address.
	TargetAddress string `json:"target_address"`
	// ClientAddress is the fabric address the bridge's client answers on.
	ClientAddress string `json:"client_address,omitempty"`
	// ListenAddr is the JSON-RPC HTTP listen address.
	ListenAddr string `json:"listen_addr,omitempty"`
	// TimeoutMS bounds each forwarded call, in milliseconds.
	TimeoutMS int `json:"timeout_ms,omitempty"`

	Fabric fabric.Config `json:"fabric"`
}

// DefaultConfig returns a Config with sensible defaults for all fields but
// the target address, which has none.
func DefaultConfig() Config {
	return Config{
		ClientAddress: defaultClientAddress,
		ListenAddr:    defaultListenAddr,
		TimeoutMS:     defaultTimeoutMS,
		Fabric:        fabric.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.TargetAddress != "" {
		c.TargetAddress = source.TargetAddress
	}
	if source.ClientAddress != "" {
		c.ClientAddress = source.ClientAddress
	}
	if source.ListenAddr != "" {
		c.ListenAddr = source.ListenAddr
	}
	if source.TimeoutMS > 0 {
		c.TimeoutMS = source.TimeoutMS
	}
	c.Fabric.Merge(&source.Fabric)
}

// Timeout returns the per-call deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate reports configuration the bridge cannot start with.
func (c *Config) Validate() error {
	if c.TargetAddress == "" {
		return fmt.Errorf("target_address is required")
	}
	return nil
}

// LoadConfig reads a JSON config file, merges it over defaults and the
// process environment (BRIDGE_PORT, CLIENT_AGENT_PORT), and returns the
// resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnv()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if port, ok := envPort("BRIDGE_PORT"); ok {
		c.ListenAddr = ":" + port
	}
	if port, ok := envPort("CLIENT_AGENT_PORT"); ok {
		c.Fabric.ListenAddr = ":" + port
	}
}

func envPort(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	if _, err := strconv.Atoi(value); err != nil {
		return "", false
	}
	return value, true
}
