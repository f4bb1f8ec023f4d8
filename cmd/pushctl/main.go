package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/pushclient"
)

const usage = `usage: pushctl [flags] <command> [args]

commands:
  notify -user <id> -title <t> -message <m> [-type <type>]
  location -order <id> -lat <lat> -lon <lon> [-status <s>]
  status -order <id> -status <s> [-message <m>]
  customer-location -order <id> -lat <lat> -lon <lon>
`

func main() {
	cfg := config.Load()

	baseURL := flag.String("url", cfg.Push.BaseURL, "push API base URL")
	timeout := flag.Duration("timeout", cfg.Push.Timeout, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg.Push.BaseURL = *baseURL
	cfg.Push.Timeout = *timeout
	cfg.Logger.Format = "text"
	log := logger.New(&cfg.Logger)
	client := pushclient.New(&cfg.Push, log)

	delivered, err := run(context.Background(), client, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("delivered: %t\n", delivered)
	if !delivered {
		os.Exit(1)
	}
}

func run(ctx context.Context, client *pushclient.Client, command string, args []string) (bool, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	user := fs.String("user", "", "recipient user id")
	order := fs.String("order", "", "order id")
	title := fs.String("title", "", "notification title")
	message := fs.String("message", "", "notification or status message")
	notificationType := fs.String("type", "SYSTEM", "notification type")
	status := fs.String("status", "", "order status")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")

	if err := fs.Parse(args); err != nil {
		return false, err
	}

	switch command {
	case "notify":
		if *user == "" {
			return false, fmt.Errorf("notify: -user is required")
		}
		return client.Notify(ctx, *user, map[string]interface{}{
			"type":       *notificationType,
			"title":      *title,
			"message":    *message,
			"created_at": time.Now().UTC(),
		}), nil

	case "location", "customer-location":
		if *order == "" {
			return false, fmt.Errorf("%s: -order is required", command)
		}
		coord, err := models.NewCoordinate(*lat, *lon)
		if err != nil {
			return false, fmt.Errorf("%s: %w", command, err)
		}
		if command == "location" {
			return client.Location(ctx, *order, coord, *status), nil
		}
		return client.CustomerLocation(ctx, *order, coord), nil

	case "status":
		s := models.OrderStatus(*status)
		if *order == "" || !s.Valid() {
			return false, fmt.Errorf("status: -order and a valid -status are required")
		}
		return client.OrderStatus(ctx, *order, s, *message), nil

	default:
		return false, fmt.Errorf("unknown command %q", command)
	}
}
