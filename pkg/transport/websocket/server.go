package websocket

import (
	"net/http"

	ws "github.com/gorilla/websocket"

	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/domain"
	"github.com/VampireTeeth/chatrelay/pkg/errors"
)

// Server upgrades HTTP requests and hands each connection to a new
// session. Route wiring stays outside; the server only needs a handler
// slot on whatever router the caller uses.
type Server struct {
	hub        domain.Hub
	upgrader   ws.Upgrader
	logger     *logging.Logger
	errHandler errors.Handler
	options    ServerOptions
}

// NewServer creates a websocket server bound to hub.
func NewServer(hub domain.Hub, logger *logging.Logger, options ServerOptions) *Server {
	upgrader := ws.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for simplicity, adjust as needed
		},
		ReadBufferSize:  options.ReadBufferSize,
		WriteBufferSize: options.WriteBufferSize,
	}

	return &Server{
		hub:        hub,
		upgrader:   upgrader,
		logger:     logger,
		errHandler: errors.NewDefaultHandler(logger.Logger),
		options:    options,
	}
}

// Handle is the HTTP handler for the chat endpoint. It blocks for the
// lifetime of the connection.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.errHandler.Handle(r.Context(),
			errors.Wrap(err, errors.ErrorTypeTransport, "UPGRADE_FAILED", "failed to upgrade connection"))
		return
	}

	logging.FromContext(r.Context()).Debug("websocket connection established", "remote_addr", r.RemoteAddr)

	session := NewSession(conn, s.hub, s.logger, s.options.Session)
	if err := session.Serve(r.Context()); err != nil {
		s.errHandler.Handle(r.Context(), err)
	}
}
