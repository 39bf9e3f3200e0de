package main

import (
	"log"
	"os"

	"github.com/aegisrisk/weightd/internal/api"
	"github.com/aegisrisk/weightd/internal/artifact"
	"github.com/aegisrisk/weightd/internal/config"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/scoring"
	"github.com/aegisrisk/weightd/internal/service"
	"github.com/aegisrisk/weightd/internal/training"
)

// #region main
func main() {
	cfg, err := config.Load(os.Getenv("WEIGHTD_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dbPath := envOr("WEIGHTD_DB", cfg.DBPath)
	listen := envOr("WEIGHTD_LISTEN", cfg.Listen)

	reg, err := registry.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open registry: %v", err)
	}
	defer reg.Close()

	samples, err := sample.NewStore(reg.DB())
	if err != nil {
		log.Fatalf("failed to init sample store: %v", err)
	}
	runs, err := training.NewRunStore(reg.DB())
	if err != nil {
		log.Fatalf("failed to init run store: %v", err)
	}
	artifacts, err := artifact.NewStore(reg.DB())
	if err != nil {
		log.Fatalf("failed to init artifact store: %v", err)
	}

	gatherer := sample.NewGatherer(samples, cfg.MinSamples)
	svc := service.New(gatherer, runs, reg, artifacts, cfg.Mapping(), cfg.Floor())

	// Ensure there is always an active version to score against.
	if _, seeded, err := svc.SeedBaseline(""); err != nil {
		log.Fatalf("failed to seed baseline: %v", err)
	} else if seeded {
		log.Println("[WEIGHTD] no versions found, seeded equal-weight baseline")
	}

	scorer := scoring.NewScorer(reg)
	e := api.BuildServer(svc, scorer, runs, samples)

	log.Printf("[WEIGHTD] listening on %s (db: %s)", listen, dbPath)
	log.Fatal(e.Start(listen))
}

// #endregion

// #region env
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion
