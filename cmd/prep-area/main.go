// Package main is the prep-area command-line tool: collection import and
// export, trade reconciliation, statistics charts, backups and migrations.
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

	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/version"
)

// globalFlags are accepted before the subcommand.
var (
	configPath = flag.String("config", "", "Config file path (default: ~/.prep-area/config.toml)")
	envFile    = flag.String("env-file", ".env", "Dotenv file with PREP_AREA_* overrides")
	debugMode  = flag.Bool("debug-mode", false, "Enable verbose debug logging")
	debugShort = flag.Bool("d", false, "Enable debug logging (shorthand for -debug-mode)")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if *debugShort {
		*debugMode = true
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	slog.SetDefault(newLogger(cfg.App.DebugMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := args[0], args[1:]
	switch command {
	case "export":
		err = runExportCommand(ctx, cfg, rest)
	case "import":
		err = runImportCommand(ctx, cfg, rest)
	case "reconcile":
		err = runReconcileCommand(ctx, cfg, rest)
	case "stats":
		err = runStatsCommand(ctx, cfg, rest)
	case "vocabulary":
		err = runVocabularyCommand(ctx, cfg, rest)
	case "backup":
		err = runBackupCommand(ctx, cfg, rest)
	case "migrate":
		err = runMigrationCommand(cfg, rest)
	case "watch":
		err = runWatchCommand(ctx, cfg, rest)
	case "config":
		err = runConfigCommand(cfg, rest)
	case "version":
		fmt.Printf("prep-area %s (schema %d)\n", version.GetVersion(), version.SchemaVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Println("Prep Area - Dice Masters collection tracker")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Usage: prep-area [global flags] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  export      Write the collection or trade CSV")
	fmt.Println("  import      Merge a collection CSV into the collection")
	fmt.Println("  reconcile   Match a partner's trade CSV against the collection")
	fmt.Println("  stats       Print collection statistics or render a chart")
	fmt.Println("  vocabulary  Write a vocabulary snapshot of the content database")
	fmt.Println("  backup      Create, restore, list or verify user database backups")
	fmt.Println("  migrate     Run user database migrations")
	fmt.Println("  watch       Print events from a running API server")
	fmt.Println("  config      Show or initialize the config file")
	fmt.Println("  version     Show version information")
	fmt.Println()
	fmt.Println("Global flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  prep-area export collection -o collection.csv")
	fmt.Println("  prep-area import collection.csv")
	fmt.Println("  prep-area reconcile --policy single partner.csv")
	fmt.Println("  prep-area stats chart --open")
	fmt.Println("  prep-area stats -format csv -o ~/exports/")
	fmt.Println("  prep-area backup create --password-env BACKUP_PWD")
	fmt.Println("  prep-area watch -types collection:updated,teams:updated")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PREP_AREA_REFERENCE_PATH  Content database (default: ~/.prep-area/content.db)")
	fmt.Println("  PREP_AREA_USER_DB         User database (default: ~/.prep-area/user.db)")
	fmt.Println("  PREP_AREA_BACKUP_DIR      Backup directory (default: ~/.prep-area/backups)")
	fmt.Println()
}

// loadConfig reads the config file and applies environment overrides.
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
	if *debugMode {
		cfg.App.DebugMode = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openServices starts the application services for one command. The caller
// must close them so pending ownership writes are flushed.
func openServices(ctx context.Context, cfg *config.Config) (*app.Services, *app.Facades, error) {
	opts, err := app.OptionsFromConfig(cfg, nil, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	// Automatic backups belong to the long-running server.
	opts.BackupInterval = 0
	services, err := app.New(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return services, app.NewFacades(services), nil
}

// closeServices flushes and closes services, reporting errors on stderr.
func closeServices(services *app.Services) {
	if err := services.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing services: %v\n", err)
	}
}

// runConfigCommand prints the effective configuration or writes a default
// config file.
func runConfigCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	initFile := fs.Bool("init", false, "Write the default config file if none exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *initFile {
		path := *configPath
		if path == "" {
			p, err := config.Path()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Config file already exists: %s\n", path)
			return nil
		}
		if err := config.DefaultConfig().SaveTo(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	}

	fmt.Printf("Content database:   %s\n", cfg.Resolve(cfg.Reference.Path))
	fmt.Printf("User database:      %s\n", cfg.Resolve(cfg.UserDB.Path))
	fmt.Printf("Backup directory:   %s\n", cfg.Resolve(cfg.UserDB.BackupDir))
	fmt.Printf("Server address:     %s\n", cfg.Addr())
	fmt.Printf("Trade policy:       %s\n", cfg.GetTradePolicy())
	fmt.Printf("Dice link:          %s\n", cfg.Trade.DiceLink)
	fmt.Printf("Watch reference:    %t\n", cfg.Reference.Watch)
	return nil
}
