// Package websocket binds chat sessions to gorilla WebSocket connections.
// Each accepted connection gets one Session running a read pump and a
// write pump; the write pump doubles as the heartbeat monitor.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/chat"
	"github.com/VampireTeeth/chatrelay/pkg/domain"
	"github.com/VampireTeeth/chatrelay/pkg/errors"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one client connection. It translates inbound frames into
// hub commands and hub deliveries into outbound text frames. The hub only
// ever holds the session's Send capability.
type Session struct {
	conn    *ws.Conn
	hub     domain.Hub
	logger  *logging.Logger
	options SessionOptions

	// id is assigned by the hub at registration and never changes after.
	id string
	// name and room are only touched from the read pump goroutine.
	name string
	room string

	sendChan     chan []byte
	state        atomic.Int32
	lastActivity atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session for an already-upgraded connection.
func NewSession(conn *ws.Conn, hub domain.Hub, logger *logging.Logger, options SessionOptions) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		conn:     conn,
		hub:      hub,
		logger:   logger,
		options:  options,
		room:     chat.DefaultRoom,
		sendChan: make(chan []byte, options.SendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.state.Store(int32(StateConnecting))
	s.touch()

	return s
}

// ID returns the hub-assigned session id. Empty until registration.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Send implements domain.Outbound. Deliveries are queued for the write
// pump; once the session is closing they are refused.
func (s *Session) Send(ctx context.Context, message []byte) error {
	if s.State() >= StateClosing {
		return domain.ErrConnectionClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return domain.ErrConnectionClosed
	case s.sendChan <- message:
		return nil
	default:
		return errors.New(errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full")
	}
}

// Serve registers the session with the hub and runs the pumps until the
// connection ends. It blocks until the session reaches StateClosed.
func (s *Session) Serve(ctx context.Context) error {
	id, err := s.hub.Register(ctx, s)
	if err != nil {
		s.conn.Close()
		s.state.Store(int32(StateClosed))
		return errors.Wrap(err, errors.ErrorTypeInternal, "REGISTER_FAILED", "failed to register session")
	}

	s.id = id
	s.state.Store(int32(StateActive))
	s.logger = s.logger.WithFields(map[string]any{"session_id": id})
	s.logger.Info("session active")

	s.wg.Add(2)
	go s.readPump()
	go s.writePump()
	s.wg.Wait()

	// Deregistration runs on a fresh context: the session context is
	// already cancelled by the time we get here.
	deregCtx, cancel := context.WithTimeout(context.Background(), s.options.WriteTimeout)
	defer cancel()
	if err := s.hub.Deregister(deregCtx, s.id); err != nil {
		s.logger.Warn("deregister failed", "error", err)
	}

	s.state.Store(int32(StateClosed))
	s.logger.Info("session closed")
	return nil
}

// beginClose moves the session into StateClosing and tears down the
// connection so both pumps unwind. Safe to call from either pump.
func (s *Session) beginClose() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.cancel()
		s.conn.Close()
	})
}

// touch records inbound liveness for the heartbeat monitor.
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) sinceActivity() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// readPump reads frames until the connection errors or closes. Binary
// frames and unreadable input are protocol errors and end the session.
func (s *Session) readPump() {
	defer s.wg.Done()
	defer s.beginClose()

	s.conn.SetReadLimit(s.options.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	s.conn.SetPingHandler(func(data string) error {
		s.touch()
		s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		return s.conn.WriteControl(ws.PongMessage, []byte(data), time.Now().Add(s.options.WriteTimeout))
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure, ws.CloseAbnormalClosure) {
				s.logger.Error("websocket read error", "error", err)
			} else {
				s.logger.Debug("websocket connection closed", "error", err)
			}
			return
		}

		if messageType != ws.TextMessage {
			s.logger.Warn("unexpected frame type", "message_type", messageType)
			return
		}

		if err := s.handleText(string(message)); err != nil {
			s.logger.Error("command dispatch failed", "error", err)
			return
		}
	}
}

// handleText runs the command parser on one inbound line and dispatches
// the result. An error return is terminal for this session only.
func (s *Session) handleText(text string) error {
	switch cmd := chat.ParseCommand(text).(type) {
	case chat.Broadcast:
		msg := cmd.Text
		if s.name != "" {
			msg = s.name + ": " + cmd.Text
		}
		return s.hub.RouteMessage(s.ctx, s.id, s.room, msg)

	case chat.ListRooms:
		rooms, err := s.hub.ListRooms(s.ctx)
		if err != nil {
			return err
		}
		for _, room := range rooms {
			if err := s.Send(s.ctx, []byte(room)); err != nil {
				return err
			}
		}
		return nil

	case chat.Join:
		if err := s.hub.JoinRoom(s.ctx, s.id, cmd.Room); err != nil {
			return err
		}
		s.room = cmd.Room
		return s.Send(s.ctx, []byte("joined"))

	case chat.SetName:
		s.name = cmd.Name
		return nil

	case chat.Invalid:
		return s.Send(s.ctx, []byte("!!! "+cmd.Reason))

	default:
		return nil
	}
}

// writePump is the single writer for the connection. Its ticker doubles
// as the heartbeat monitor: each tick either evicts a silent client or
// pings it.
func (s *Session) writePump() {
	defer s.wg.Done()
	defer s.beginClose()

	ticker := time.NewTicker(s.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(s.options.WriteTimeout))
			return

		case message := <-s.sendChan:
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := s.conn.WriteMessage(ws.TextMessage, message); err != nil {
				s.logger.Error("websocket write error", "error", err)
				return
			}

			// Drain any queued messages
			n := len(s.sendChan)
			for range n {
				select {
				case msg := <-s.sendChan:
					if err := s.conn.WriteMessage(ws.TextMessage, msg); err != nil {
						s.logger.Error("websocket write error", "error", err)
						return
					}
				default:
				}
			}

		case <-ticker.C:
			if s.sinceActivity() > s.options.HeartbeatTimeout {
				s.logger.Info("heartbeat timeout, evicting session",
					"idle", s.sinceActivity().Round(time.Millisecond))
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := s.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				s.logger.Error("websocket ping error", "error", err)
				return
			}
		}
	}
}
