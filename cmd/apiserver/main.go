// Package main runs the prep-area REST API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/prep-area/internal/api"
	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/events"
	"github.com/ramonehamilton/prep-area/internal/reference"
	"github.com/ramonehamilton/prep-area/internal/version"
)

var (
	configPath    = flag.String("config", "", "Config file path (default: ~/.prep-area/config.toml)")
	envFile       = flag.String("env-file", ".env", "Dotenv file with PREP_AREA_* overrides")
	port          = flag.Int("port", 0, "API server port (overrides config)")
	referencePath = flag.String("reference", "", "Content database path (overrides config)")
	debugMode     = flag.Bool("debug-mode", false, "Enable verbose debug logging")
)

func main() {
	flag.Parse()

	fmt.Printf("Prep Area - REST API Server %s\n", version.GetVersion())
	fmt.Println("===================================")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.App.DebugMode)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := events.NewEventDispatcher()
	opts, err := app.OptionsFromConfig(cfg, dispatcher, logger)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	fmt.Printf("Content database: %s\n", opts.Reference.Path)
	fmt.Printf("User database:    %s\n", opts.UserDB.Path)

	services, err := app.New(ctx, opts)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.Reference.Watch {
		delay, err := cfg.GetReloadDelay()
		if err != nil {
			delay = reference.DefaultReloadDelay
		}
		watcher, err := services.Reference.Watch(ctx, reference.WatcherConfig{Delay: delay})
		if err != nil {
			log.Printf("[API] Reference watcher disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	server := api.NewServer(&api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ImportRate:     cfg.Server.ImportRate,
		ImportBurst:    cfg.Server.ImportBurst,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}, api.FacadesFrom(app.NewFacades(services)), dispatcher)

	// Start API server
	if err := server.Start(); err != nil {
		_ = services.Close(context.Background())
		log.Fatalf("Failed to start API server: %v", err)
	}

	fmt.Println()
	fmt.Printf("API server running at http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	<-ctx.Done()

	fmt.Println()
	fmt.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if err := services.Close(shutdownCtx); err != nil {
		log.Printf("Error closing services: %v", err)
	}

	fmt.Println("API server stopped.")
}

// loadConfig reads the config file, applies environment overrides and
// command-line flags, then validates the result.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(*envFile); err != nil {
		return nil, err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *referencePath != "" {
		cfg.Reference.Path = *referencePath
	}
	if *debugMode {
		cfg.App.DebugMode = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
