package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"StationScraper/internal/app"
	"StationScraper/internal/config"
	"StationScraper/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if *once {
		results, err := application.RunOnce(ctx)
		if err != nil {
			logger.Error("batch failed", "error", err)
			os.Exit(1)
		}
		failed := 0
		for _, res := range results {
			if !res.Done {
				failed++
			}
		}
		logger.Info("single batch finished", "stations", len(results), "failed", failed)
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
		if failed > 0 {
			os.Exit(2)
		}
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
