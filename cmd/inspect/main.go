package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/aegisrisk/weightd/internal/registry"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to weightd.db")
	version := flag.String("version", "", "show single version detail")
	transitions := flag.Int("transitions", 0, "show N most recent lifecycle transitions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/weightd.db [--version id] [--transitions N] [--json]")
		os.Exit(2)
	}

	store, err := registry.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetail(store, *version, *jsonOut)
	case *transitions > 0:
		err = runTransitions(store, *transitions, *jsonOut)
	default:
		err = runList(store, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runList(store *registry.Store, jsonOut bool) error {
	versions, err := store.List("")
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(versions)
	}
	fmt.Printf("%-36s  %-9s  %-16s  %-6s  %s\n", "VERSION", "STATE", "FAMILY", "AUC", "LABEL")
	for _, v := range versions {
		fam := v.Family
		if fam == "" {
			fam = "-"
		}
		fmt.Printf("%-36s  %-9s  %-16s  %.3f  %s\n", v.ID, v.State, fam, v.AUC, v.Label)
	}
	return nil
}

// #endregion

// #region detail-mode

func runDetail(store *registry.Store, id string, jsonOut bool) error {
	v, err := store.Get(id)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(v)
	}
	fmt.Printf("version:  %s\n", v.ID)
	fmt.Printf("label:    %s\n", v.Label)
	fmt.Printf("state:    %s\n", v.State)
	if v.Family != "" {
		fmt.Printf("family:   %s  samples: %d  accuracy: %.3f  auc: %.3f  cv: %.3f\n",
			v.Family, v.SampleCount, v.Accuracy, v.AUC, v.CrossValScore)
	}
	fmt.Println("weights:")
	for cat, w := range v.Weights {
		fmt.Printf("  %-14s %.4f\n", cat, w)
	}
	return nil
}

// #endregion

// #region transitions-mode

func runTransitions(store *registry.Store, n int, jsonOut bool) error {
	ts, err := store.Transitions("", n)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(ts)
	}
	for _, t := range ts {
		from := string(t.From)
		if from == "" {
			from = "(new)"
		}
		fmt.Printf("%s  %-36s  %-9s -> %-9s  %s\n",
			t.CreatedAt.Format("2006-01-02 15:04:05"), t.VersionID, from, t.To, t.Note)
	}
	return nil
}

// #endregion
