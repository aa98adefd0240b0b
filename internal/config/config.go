package config

import (
	"time"

	"github.com/VampireTeeth/chatrelay/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `json:"server" yaml:"server"`
	Chat    ChatConfig     `json:"chat" yaml:"chat"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// ChatConfig represents chat relay configuration
type ChatConfig struct {
	// HeartbeatInterval is how often each session pings its client.
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	// HeartbeatTimeout is how long a client may stay silent before its
	// session is evicted.
	HeartbeatTimeout time.Duration `json:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	MaxMessageSize   int64         `json:"max_message_size" yaml:"max_message_size"`
	SendBufferSize   int           `json:"send_buffer_size" yaml:"send_buffer_size"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         9999,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Chat: ChatConfig{
			HeartbeatInterval: 5 * time.Second,
			HeartbeatTimeout:  10 * time.Second,
			MaxMessageSize:    64 * 1024, // 64KB
			SendBufferSize:    256,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if c.Chat.HeartbeatInterval <= 0 {
		return NewConfigError("chat.heartbeat_interval", "interval must be positive")
	}

	if c.Chat.HeartbeatTimeout <= c.Chat.HeartbeatInterval {
		return NewConfigError("chat.heartbeat_timeout", "timeout must exceed the heartbeat interval")
	}

	if c.Chat.MaxMessageSize <= 0 {
		return NewConfigError("chat.max_message_size", "size must be positive")
	}

	if c.Chat.SendBufferSize <= 0 {
		return NewConfigError("chat.send_buffer_size", "size must be positive")
	}

	return nil
}
