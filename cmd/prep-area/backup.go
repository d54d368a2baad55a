package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramonehamilton/prep-area/internal/app"
	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/storage"
)

// passwordFromEnv reads a backup password from the named environment
// variable. An empty name means no password.
func passwordFromEnv(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	password := os.Getenv(name)
	if password == "" {
		return "", fmt.Errorf("environment variable %s is not set or empty", name)
	}
	return password, nil
}

// runBackupCommand handles backup create, restore, list and verify.
func runBackupCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		printBackupUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		name := fs.String("name", "", "Backup name (default: timestamped)")
		passwordEnv := fs.String("password-env", "", "Environment variable containing encryption password")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		password, err := passwordFromEnv(*passwordEnv)
		if err != nil {
			return err
		}

		services, facades, err := openServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeServices(services)

		info, err := facades.System.Backup(ctx, app.BackupRequest{Name: *name, Password: password})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Backup created: %s\n", info.Path)
		fmt.Printf("  Size:      %.2f KB\n", float64(info.Size)/1024)
		fmt.Printf("  Checksum:  %s\n", info.Checksum)
		fmt.Printf("  Encrypted: %t\n", info.Encrypted)
		return nil

	case "restore":
		fs := flag.NewFlagSet("restore", flag.ExitOnError)
		passwordEnv := fs.String("password-env", "", "Environment variable containing decryption password")
		noConfirm := fs.Bool("yes", false, "Skip confirmation prompt")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return errors.New("restore requires a backup name (see 'backup list')")
		}
		name := fs.Arg(0)
		password, err := passwordFromEnv(*passwordEnv)
		if err != nil {
			return err
		}

		if !*noConfirm {
			fmt.Println("WARNING: This will replace your teams, collection and dice!")
			fmt.Printf("Database: %s\n", cfg.Resolve(cfg.UserDB.Path))
			fmt.Printf("Backup:   %s\n", name)
			fmt.Print("\nAre you sure you want to continue? (yes/no): ")

			reader := bufio.NewReader(os.Stdin)
			answer, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "yes" && answer != "y" {
				fmt.Println("Restore cancelled.")
				return nil
			}
		}

		services, facades, err := openServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeServices(services)

		if err := facades.System.Restore(ctx, app.RestoreRequest{Name: name, Password: password}); err != nil {
			return err
		}
		fmt.Println("✓ Backup restored successfully!")
		return nil

	case "list", "ls":
		services, facades, err := openServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeServices(services)

		backups, err := facades.System.ListBackups(ctx)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		fmt.Printf("\nFound %d backup(s) in %s:\n\n", len(backups), cfg.Resolve(cfg.UserDB.BackupDir))
		for i, b := range backups {
			fmt.Printf("%d. %s\n", i+1, b.Name)
			fmt.Printf("   Size:      %.2f KB\n", float64(b.Size)/1024)
			fmt.Printf("   Modified:  %s\n", b.ModTime.Format("2006-01-02 15:04:05"))
			fmt.Printf("   Encrypted: %t\n", b.Encrypted)
			fmt.Println()
		}
		return nil

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return errors.New("verify requires a backup file path")
		}
		path := fs.Arg(0)
		if !filepath.IsAbs(path) && !strings.ContainsRune(path, os.PathSeparator) {
			path = filepath.Join(cfg.Resolve(cfg.UserDB.BackupDir), path)
		}
		encrypted, err := storage.IsEncrypted(path)
		if err != nil {
			return err
		}
		if encrypted {
			fmt.Printf("%s is encrypted; restore it to verify its contents.\n", path)
			return nil
		}
		if err := storage.VerifyBackup(ctx, path); err != nil {
			return err
		}
		fmt.Printf("✓ Backup is valid: %s\n", path)
		return nil

	default:
		fmt.Printf("Unknown backup command: %s\n\n", command)
		printBackupUsage()
		os.Exit(1)
	}
	return nil
}

func printBackupUsage() {
	fmt.Println("Prep Area - User Database Backups")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  prep-area backup <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create     Create a new backup")
	fmt.Println("  restore    Restore teams, collection and dice from a backup")
	fmt.Println("  list, ls   List available backups")
	fmt.Println("  verify     Check that a backup file is readable")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  export BACKUP_PWD=mypassword")
	fmt.Println("  prep-area backup create --name weekly --password-env BACKUP_PWD")
	fmt.Println("  prep-area backup restore weekly.sqlite.enc --password-env BACKUP_PWD")
	fmt.Println()
}

// runMigrationCommand applies or inspects user database migrations.
func runMigrationCommand(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		printMigrationUsage()
		os.Exit(1)
	}

	dbPath := cfg.Resolve(cfg.UserDB.Path)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	mgr, err := storage.NewMigrationManager(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing migration manager: %v\n", err)
		}
	}()

	switch args[0] {
	case "up":
		fmt.Println("Applying all pending migrations...")
		if err := mgr.Up(); err != nil {
			return err
		}
	case "down":
		fmt.Println("Rolling back all migrations...")
		if err := mgr.Down(); err != nil {
			return err
		}
	case "status", "version":
	default:
		fmt.Printf("Unknown migration command: %s\n\n", args[0])
		printMigrationUsage()
		os.Exit(1)
	}

	version, dirty, err := mgr.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Printf("Current version: %d (dirty - migration failed or interrupted)\n", version)
	} else {
		fmt.Printf("Current version: %d\n", version)
	}
	return nil
}

func printMigrationUsage() {
	fmt.Println("Prep Area - Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  prep-area migrate <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up        Apply all pending migrations")
	fmt.Println("  down      Roll back all migrations")
	fmt.Println("  status    Show current migration version")
	fmt.Println()
}
