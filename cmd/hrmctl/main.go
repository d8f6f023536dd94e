package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/hr-portal-client/internal/app"
	"github.com/samvad-hq/hr-portal-client/internal/cli"
	"github.com/samvad-hq/hr-portal-client/internal/config"
	"github.com/samvad-hq/hr-portal-client/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hrmctl: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd, err := cli.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sugar, err := logger.InitWithWriter(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log := logger.New(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize client", "error", err)
		return err
	}
	defer func() {
		if cerr := runtime.Close(); cerr != nil {
			logger.ErrorObj("shutdown failed", "error", cerr)
		}
	}()

	err = cli.Execute(ctx, runtime.Service(), cmd, os.Stdout)

	if summary, merr := runtime.MetricsSummary(); merr == nil && summary != nil {
		logger.InfoObj("gateway metrics", "metrics", summary)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}
