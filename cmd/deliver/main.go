package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/plop-reliability/config"
	"github.com/marcelsud/plop-reliability/endpoints"
	"github.com/marcelsud/plop-reliability/webhook"
	"github.com/marcelsud/plop-reliability/webhook/postgres"
)

/* deliver - run one webhook delivery attempt by hand
 * Usage: go run ./cmd/deliver -endpoint <id> -message <id> [-attempt n] [-config file.toml]
 * Exit codes: 0 = delivered or skipped, 1 = failed
 */

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	endpointID := flag.String("endpoint", "", "webhook endpoint id")
	messageID := flag.String("message", "", "message id")
	attempt := flag.Int("attempt", 1, "attempt number")
	configFile := flag.String("config", "", "optional TOML config file")
	flag.Parse()

	if *endpointID == "" || *messageID == "" {
		flag.Usage()
		return errors.New("-endpoint and -message are required")
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePostgres(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := httplog.NewLogger("plop-deliver", httplog.Options{JSON: cfg.LogJSON})

	repo, err := postgres.NewRepository(cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	opts := []webhook.Option{
		webhook.WithTimeout(cfg.WebhookTimeout()),
		webhook.WithLogger(logger),
	}
	if cfg.WebhookEndpointsFile != "" {
		catalog, err := endpoints.LoadFile(cfg.WebhookEndpointsFile)
		if err != nil {
			return err
		}
		opts = append(opts, webhook.WithEndpointSource(catalog))
	}

	s := webhook.NewService(repo, opts...)
	result, err := s.Deliver(ctx, webhook.Task{WebhookEndpointID: *endpointID, MessageID: *messageID}, *attempt)
	if err != nil {
		var deliveryErr *webhook.DeliveryError
		if errors.As(err, &deliveryErr) {
			printRecord(ctx, repo, deliveryErr.DeliveryID)
		}
		return err
	}

	if result.Skipped {
		fmt.Printf("skipped: %s\n", result.SkipReason)
		return nil
	}
	printRecord(ctx, repo, result.DeliveryID)
	return nil
}

// printRecord shows the stored row so the outcome can be checked against the database
func printRecord(ctx context.Context, repo *postgres.Repository, id string) {
	d, err := repo.GetDelivery(context.WithoutCancel(ctx), id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading delivery %s: %v\n", id, err)
		return
	}

	httpStatus := "-"
	if d.HTTPStatus != nil {
		httpStatus = strconv.Itoa(*d.HTTPStatus)
	}
	fmt.Printf("delivery: id=%s attempt=%d status=%s http=%s latency=%dms\n", d.ID, d.Attempt, d.Status, httpStatus, d.LatencyMs)
	if d.Error != nil {
		fmt.Printf("error: %s\n", *d.Error)
	}
	if d.ResponseBody != "" {
		fmt.Printf("response: %s\n", d.ResponseBody)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.GetConfig()
	}
	return config.FromFile(path)
}
