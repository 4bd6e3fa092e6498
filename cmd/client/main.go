package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/growthfarm/internal/buildinfo"
	"github.com/dmitrijs2005/growthfarm/internal/client/cli"
	"github.com/dmitrijs2005/growthfarm/internal/client/config"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Unblock the REPL's read so Run can shut down in order.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "shutdown", "error", err)
		os.Exit(1)
	}
}
