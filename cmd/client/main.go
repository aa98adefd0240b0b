package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"

	"github.com/VampireTeeth/chatrelay/internal/logging"
	"github.com/VampireTeeth/chatrelay/pkg/transport/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:9999", "server address")
	flag.Parse()

	logger := logging.New(logging.Config{Level: "info", Format: "pretty"})

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}

	client, err := websocket.Dial(u, logger, websocket.DefaultClientOptions())
	if err != nil {
		logger.Error("failed to connect", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer client.Teardown()

	logger.Info("connected", "url", u.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go client.ReadLoop(os.Stdout)

	if err := client.WriteLoop(ctx, os.Stdin); err != nil {
		logger.Error("connection lost", "error", err)
		os.Exit(1)
	}
}
