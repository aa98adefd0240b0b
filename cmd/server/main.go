package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/VampireTeeth/chatrelay/internal/config"
	"github.com/VampireTeeth/chatrelay/internal/eventbus"
	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/chat"
	"github.com/VampireTeeth/chatrelay/pkg/transport/websocket"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHATRELAY_CONFIG"), "path to config file (json or yaml)")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewInMemoryBus(64)
	bus.Start(ctx)
	defer bus.Stop()

	bus.Subscribe(eventbus.EventSessionConnected, func(event *eventbus.Event) {
		logger.Info("session connected", "session_id", event.SessionID, "room", event.Room)
	})
	bus.Subscribe(eventbus.EventSessionDisconnected, func(event *eventbus.Event) {
		logger.Info("session disconnected", "session_id", event.SessionID, "room", event.Room)
	})
	bus.Subscribe(eventbus.EventRoomCreated, func(event *eventbus.Event) {
		logger.Info("room created", "room", event.Room)
	})

	hub := chat.NewHub(chat.HubOptions{
		Logger:   logger,
		EventBus: bus,
	})
	if err := hub.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}
	defer hub.Stop()

	wsOptions := websocket.DefaultServerOptions()
	wsOptions.Session.HeartbeatInterval = cfg.Chat.HeartbeatInterval
	wsOptions.Session.HeartbeatTimeout = cfg.Chat.HeartbeatTimeout
	wsOptions.Session.MaxMessageSize = cfg.Chat.MaxMessageSize
	wsOptions.Session.SendBufferSize = cfg.Chat.SendBufferSize

	wsServer := websocket.NewServer(hub, logger, wsOptions)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logging.WithLogger(req.Context(), logger)))
		})
	})
	r.Get("/ws", wsServer.Handle)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
