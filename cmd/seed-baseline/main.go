package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aegisrisk/weightd/internal/artifact"
	"github.com/aegisrisk/weightd/internal/config"
	"github.com/aegisrisk/weightd/internal/registry"
	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/service"
	"github.com/aegisrisk/weightd/internal/training"
)

// #region main
func main() {
	dbPath := flag.String("db", "weightd.db", "path to weightd.db")
	label := flag.String("label", "equal-weight baseline", "version label")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("WEIGHTD_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	reg, err := registry.NewStore(*dbPath)
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

	svc := service.New(sample.NewGatherer(samples, cfg.MinSamples), runs, reg, artifacts, cfg.Mapping(), cfg.Floor())

	v, seeded, err := svc.SeedBaseline(*label)
	if err != nil {
		log.Fatalf("seed baseline: %v", err)
	}
	if !seeded {
		fmt.Println("registry already has versions, nothing to do")
		return
	}
	fmt.Printf("seeded baseline version %s (active)\n", v.ID)
	for cat, w := range v.Weights {
		fmt.Printf("  %-14s %.4f\n", cat, w)
	}
}

// #endregion
