package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Black-And-White-Club/raffle-bot/app"
	"github.com/Black-And-White-Club/raffle-bot/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		application.Logger.Error("Application stopped with error", "error", runErr)
	}

	if err := application.Close(); err != nil {
		application.Logger.Error("Error during shutdown", "error", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
