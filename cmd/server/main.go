package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/timn835/crypto-chat/internal/server"
	"github.com/timn835/crypto-chat/internal/server/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Printf("crypto-chat server: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	app.Run(ctx)
	return nil
}
