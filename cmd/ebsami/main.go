package main

import (
	"log/slog"
	"os"

	"github.com/ebsami/ebsami/cmd/ebsami/commands"
)

func main() {
	// Logs go to stderr; stdout carries only the registered image id.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
