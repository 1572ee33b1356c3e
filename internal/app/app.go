package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"tebnegar/client/internal/cli"
	"tebnegar/client/internal/config"
	"tebnegar/client/internal/gateway"
	"tebnegar/client/internal/identity"
	"tebnegar/client/internal/model"
	"tebnegar/client/internal/state"
	syncctl "tebnegar/client/internal/sync"
	"tebnegar/client/internal/view"
)

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	ids, err := identity.OpenSQLite(cfg.StatePath)
	if err != nil {
		// An unavailable store must behave like a fresh visitor, not a
		// crash.
		slog.Warn("State database unavailable, session will not persist across runs", "path", cfg.StatePath, "error", err)
		ids = identity.Discard()
	}
	defer func() {
		if err := ids.Close(); err != nil {
			slog.Error("Failed to close state database", "error", err)
		}
	}()

	gw := gateway.NewHTTP(cfg.APIBaseURL, time.Duration(cfg.RequestTimeout)*time.Second)
	states := state.New()

	var strategy view.RenderStrategy = view.PlainStrategy{}
	if cfg.RenderMode == "markdown" {
		strategy = view.NewMarkdownStrategy(80)
	}
	console := view.NewConsole(os.Stdout, strategy)

	controller := syncctl.New(gw, ids, console, states, marketingPayload(cfg))

	ctx := context.Background()
	if err := controller.Startup(ctx); err != nil {
		// Retryable: the first send re-attempts provisioning. Degraded is
		// terminal and already on screen.
		slog.Error("Startup did not reach ready", "error", err)
	}

	repl := cli.NewREPL(controller, states, os.Stdout)
	repl.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	controller.Shutdown(shutdownCtx)

	return 0
}

// marketingPayload captures the provisioning metadata the backend records
// once per session: an app-scheme landing URL in place of a page address,
// the configured attribution fields, and basic client facts.
func marketingPayload(cfg *config.Config) model.SessionCreate {
	hostname, _ := os.Hostname()
	metadata, err := json.Marshal(map[string]string{
		"instance_id": uuid.NewString(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"hostname":    hostname,
	})
	if err != nil {
		metadata = nil
	}

	return model.SessionCreate{
		LandingPageURL: "app://tebnegar/chat",
		UTMSource:      cfg.UTMSource,
		UTMMedium:      cfg.UTMMedium,
		UTMCampaign:    cfg.UTMCampaign,
		ClientMetadata: metadata,
	}
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
