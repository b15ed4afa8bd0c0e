// ABOUTME: Terminal front-end for monitoring and conversing with warren agents
// ABOUTME: Wires settings, HTTP client, channel client, engine, and cache into the TUI

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389/warren/internal/api"
	"github.com/2389/warren/internal/config"
	"github.com/2389/warren/internal/session"
	"github.com/2389/warren/internal/store"
	"github.com/2389/warren/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	serverFlag := flag.String("server", "", "Gateway base URL (overrides saved settings)")
	tokenFlag := flag.String("token", "", "Bearer token (overrides saved settings)")
	flag.Parse()

	if err := run(*configPath, *serverFlag, *tokenFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, serverFlag, tokenFlag string) error {
	settingsStore := config.NewStore(config.NewFileKV(config.DefaultKVPath()), nil)
	settings := settingsStore.Load()

	logging := config.LoggingConfig{Level: "info", Format: "text"}
	cachePath := filepath.Join(filepath.Dir(config.DefaultKVPath()), "cache.db")

	if configPath != "" {
		f, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if f.Settings.ServerURL != "" {
			settings.ServerURL = f.Settings.ServerURL
		}
		if f.Settings.AuthToken != "" {
			settings.AuthToken = f.Settings.AuthToken
		}
		if f.Logging.Level != "" {
			logging = f.Logging
		}
		if f.Cache.Path != "" {
			cachePath = f.Cache.Path
		}
	}
	if serverFlag != "" {
		settings.ServerURL = serverFlag
	}
	if tokenFlag != "" {
		settings.AuthToken = tokenFlag
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("configure a gateway first: %w", err)
	}

	logger := newLogger(logging)

	apiClient := api.New(settings.ServerURL, settings.AuthToken, logger)
	channel := ws.NewClient(logger)

	var cache session.TranscriptCache
	if c, err := store.Open(cachePath); err != nil {
		logger.Warn("transcript cache unavailable", "error", err)
	} else {
		cache = c
		defer c.Close()
	}

	engine := session.New(apiClient, channel, cache, logger)
	engine.SetNotificationsEnabled(settings.EnableNotifications)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx, channel.Events())
	defer channel.Disconnect()

	// Cold start: roster over REST, live updates over the channel. Both
	// are best-effort; the UI shows the disconnected state otherwise.
	engine.RefreshRoster(ctx)
	if err := channel.Connect(ctx, settings.ServerURL, settings.AuthToken); err != nil {
		logger.Warn("initial channel connect failed, will retry", "error", err)
	}

	m := newModel(engine, apiClient, channel, settingsStore, settings)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// newLogger builds the slog handler from logging config, writing to a file
// so log lines do not tear the TUI.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out, err := os.OpenFile(filepath.Join(os.TempDir(), "warren.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
