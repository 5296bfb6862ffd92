package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	app "github.com/rocketscienceinc/gomoku-backend/internal"
	"github.com/rocketscienceinc/gomoku-backend/internal/config"
)

func main() {
	configFlag := flag.String("config", "", "path to the YAML config; defaults to $"+config.PathEnv+" or "+config.DefaultPath)
	flag.Parse()

	os.Exit(run(config.ResolvePath(*configFlag, os.Getenv)))
}

// run returns the process exit code.
func run(configPath string) int {
	conf, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))
	logger.Info("Configuration loaded",
		"path", configPath,
		"storage", conf.Storage.Driver,
		"broker", conf.Notifier.Broker,
		"archive", conf.Storage.SQLitePath != "",
	)

	if err = app.RunApp(logger, conf); err != nil {
		logger.Error("Application stopped with error", "error", err)
		return 1
	}

	return 0
}
