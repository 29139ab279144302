package fabric

import (
	"log/slog"
	"time"
)

// Config defines configuration for a fabric Node.
type Config struct {
	// Node identity
	Name string `json:"name,omitempty"`

	// Delivery settings
	ChannelBufferSize int           `json:"channel_buffer_size,omitempty"`
	DeliveryTimeout   time.Duration `json:"delivery_timeout,omitempty"`

	// HTTP transport: local listen address and remote routes
	// (destination address -> endpoint base URL).
	ListenAddr string            `json:"listen_addr,omitempty"`
	Routes     map[string]string `json:"routes,omitempty"`

	// Observability
	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		ChannelBufferSize: 100,
		DeliveryTimeout:   30 * time.Second,
		Logger:            slog.Default(),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.ChannelBufferSize > 0 {
		c.ChannelBufferSize = source.ChannelBufferSize
	}

	if source.DeliveryTimeout > 0 {
		c.DeliveryTimeout = source.DeliveryTimeout
	}

	if source.ListenAddr != "" {
		c.ListenAddr = source.ListenAddr
	}

	if len(source.Routes) > 0 {
		c.Routes = source.Routes
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
