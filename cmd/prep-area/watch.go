package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/ipc"
)

// runWatchCommand prints the events a running server publishes.
func runWatchCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	defaultServer := "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := fs.String("server", defaultServer, "Server base URL or WebSocket URL")
	types := fs.String("types", "", "Comma-separated event types to show (default: all)")
	retry := fs.Duration("retry", 5*time.Second, "Reconnect delay; 0 exits on the first disconnect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wsURL, err := ipc.EventURL(*server)
	if err != nil {
		return err
	}

	client := ipc.NewClient(ipc.ClientConfig{
		URL:            wsURL,
		ReconnectDelay: *retry,
		Logger:         slog.Default(),
	})
	show := func(e ipc.Event) {
		fmt.Printf("%s  %-20s %s\n", time.Now().Format("15:04:05"), e.Type, string(e.Data))
	}
	if *types == "" {
		client.On(ipc.AllEvents, show)
	} else {
		for _, t := range strings.Split(*types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.On(t, show)
			}
		}
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", wsURL)
	return client.Run(ctx)
}
