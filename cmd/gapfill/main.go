package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "embed"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/gapfill/internal/app"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"

	// Blank imports register the database dialectors the binary supports.
	_ "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm/sqlite"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
// This file is used to load configuration at application startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main is the entry point of the application. It parses the command, wires
// signal handling for graceful shutdown, and hands off to the Fx container.
func main() {
	command := flag.String("command", app.CommandFill, "command to run: migrate, fill, train or export")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the sweep...", sig)
		cancel()
	}()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, *command)
	os.Exit(0)
}
