package websocket

import "time"

// SessionOptions represents per-session transport options
type SessionOptions struct {
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxMessageSize    int64
	SendBufferSize    int
}

// DefaultSessionOptions returns default session options
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		MaxMessageSize:    64 * 1024, // 64KB
		SendBufferSize:    256,
	}
}

// ServerOptions represents websocket server options
type ServerOptions struct {
	Session         SessionOptions
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultServerOptions returns default server options
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Session:         DefaultSessionOptions(),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
