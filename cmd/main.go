package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/docmirror/docmirror/api"
	"github.com/docmirror/docmirror/config"
)

func main() {

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on config file and environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err.Error())
		os.Exit(1)
	}

	if err := api.Run(context.Background(), cfg); err != nil {
		slog.Error("server exited with error", "err", err.Error())
		os.Exit(1)
	}
}
