package main

import (
	"log"
	"os"

	"github.com/atelierhq/critique/internal/analysis"
	"github.com/atelierhq/critique/internal/api"
	"github.com/atelierhq/critique/internal/config"
	"github.com/atelierhq/critique/internal/delivery"
	"github.com/atelierhq/critique/internal/journal"
	"github.com/atelierhq/critique/internal/runner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.Level())

	logger.Info("critique: starting",
		"listen_addr", cfg.ListenAddr,
		"journal_path", cfg.JournalPath,
		"main_service_url", cfg.MainServiceURL,
		"min_delay", cfg.MinDelay,
		"max_delay", cfg.MaxDelay,
	)

	j, err := journal.NewSQLiteJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer j.Close()

	client, err := delivery.NewClient(delivery.Config{
		MainServiceURL: cfg.MainServiceURL,
		ServiceKey:     cfg.ServiceKey,
		Timeout:        cfg.DeliveryTimeout,
	})
	if err != nil {
		log.Fatalf("failed to build delivery client: %v", err)
	}

	sampler := analysis.NewSampler(analysis.SamplerConfig{
		MinDelay:    cfg.MinDelay,
		MaxDelay:    cfg.MaxDelay,
		SuccessRate: cfg.SuccessRate,
	})

	run := runner.New(sampler, client, j, logger)

	srv := api.NewServer(cfg, j, run, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Intake has stopped; give in-flight analyses a bounded window to finish
	// and deliver before the process exits.
	if !run.Drain(cfg.DrainTimeout) {
		logger.Warn("drain timed out, abandoning in-flight jobs")
	}
	run.Feed().Close()

	logger.Info("critique: stopped")
}
