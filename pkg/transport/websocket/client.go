package websocket

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/errors"
)

// ClientOptions represents dialing client options
type ClientOptions struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		WriteTimeout: 10 * time.Second,
		PingInterval: time.Second,
	}
}

// Client is a terminal-oriented chat client: it relays lines from a
// reader to the server and server frames to a writer.
type Client struct {
	conn    *ws.Conn
	logger  *logging.Logger
	options ClientOptions
	done    chan struct{}
}

// Dial connects to the chat endpoint at u.
func Dial(u url.URL, logger *logging.Logger, options ClientOptions) (*Client, error) {
	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "DIAL_ERROR", "failed to connect to server")
	}

	return &Client{
		conn:    conn,
		logger:  logger,
		options: options,
		done:    make(chan struct{}),
	}, nil
}

// ReadLoop prints every server text frame to out until the connection
// closes. It must run on its own goroutine.
func (c *Client) ReadLoop(out io.Writer) {
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug("read loop finished", "error", err)
			return
		}

		fmt.Fprintln(out, string(message))
	}
}

// WriteLoop sends each line from in as a text frame and pings the server
// on the configured interval. It returns when in is exhausted, the
// context is cancelled, or the connection fails.
func (c *Client) WriteLoop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-c.done:
				return
			}
		}
	}()

	ticker := time.NewTicker(c.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil

		case line, ok := <-lines:
			if !ok {
				return c.closeGracefully()
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(ws.TextMessage, []byte(line)); err != nil {
				return errors.Wrap(err, errors.ErrorTypeTransport, "WRITE_ERROR", "failed to send message")
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return errors.Wrap(err, errors.ErrorTypeTransport, "PING_ERROR", "failed to ping server")
			}

		case <-ctx.Done():
			return c.closeGracefully()
		}
	}
}

// closeGracefully sends a close frame and waits briefly for the server to
// close the connection.
func (c *Client) closeGracefully() error {
	err := c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "CLOSE_ERROR", "failed to send close frame")
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}

	return nil
}

// Teardown releases the underlying connection.
func (c *Client) Teardown() error {
	return c.conn.Close()
}
