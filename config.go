package anode

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportKind selects the transport variant a session uses.
type TransportKind string

// Supported transport variants.
const (
	// TransportSocket is the persistent bidirectional WebSocket transport.
	TransportSocket TransportKind = "socket"
	// TransportStream is the SSE push stream paired with HTTP POSTs.
	TransportStream TransportKind = "stream"
)

// Default configuration values. Intervals are in milliseconds, matching the
// protocol's configuration surface.
const (
	DefaultWSPort              = 8765
	DefaultHTTPPort            = 8766
	DefaultReconnectIntervalMS = 3000
	DefaultTimeoutMS           = 30000
)

// Config holds the connection settings for a Client. Host is required;
// everything else has a default. The struct is loadable from a YAML file via
// LoadConfig.
type Config struct {
	// Host is the address of the device server.
	Host string `yaml:"host"`

	// WSPort is the WebSocket port used by the socket transport.
	WSPort int `yaml:"wsPort"`

	// HTTPPort is the HTTP port used by the stream transport.
	HTTPPort int `yaml:"httpPort"`

	// Transport selects the transport variant.
	Transport TransportKind `yaml:"transport"`

	// AutoReconnect schedules a reconnect after an unexpected transport
	// closure. Nil means enabled.
	AutoReconnect *bool `yaml:"autoReconnect"`

	// ReconnectIntervalMS is the fixed delay between reconnect attempts,
	// in milliseconds.
	ReconnectIntervalMS int `yaml:"reconnectInterval"`

	// TimeoutMS is the per-request response deadline, in milliseconds.
	TimeoutMS int `yaml:"timeout"`
}

// LoadConfig reads a YAML config file and applies defaults to any field the
// file leaves unset.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether the config can produce a working session.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	switch c.Transport {
	case "", TransportSocket, TransportStream:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.WSPort == 0 {
		c.WSPort = DefaultWSPort
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.Transport == "" {
		c.Transport = TransportSocket
	}
	if c.ReconnectIntervalMS == 0 {
		c.ReconnectIntervalMS = DefaultReconnectIntervalMS
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	return c
}

func (c Config) autoReconnect() bool {
	return c.AutoReconnect == nil || *c.AutoReconnect
}

func (c Config) reconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMS) * time.Millisecond
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
