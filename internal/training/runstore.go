package training

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aegisrisk/weightd/internal/classifier"
)

// #region schema

const runsSchema = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id          TEXT PRIMARY KEY,
	family          TEXT NOT NULL,
	sample_ids_json TEXT NOT NULL,
	sample_count    INTEGER NOT NULL,
	test_fraction   REAL NOT NULL,
	random_seed     INTEGER NOT NULL,
	cv_folds        INTEGER NOT NULL,
	accuracy        REAL NOT NULL,
	auc             REAL NOT NULL,
	cross_val_score REAL NOT NULL,
	importance_json TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
`

// #endregion

// #region run-store

// RunStore persists completed training runs. Rows are written once and
// never updated.
type RunStore struct {
	db *sql.DB
}

// NewRunStore initializes the training_runs table and returns a RunStore.
func NewRunStore(db *sql.DB) (*RunStore, error) {
	if _, err := db.Exec(runsSchema); err != nil {
		return nil, fmt.Errorf("migrate training_runs: %w", err)
	}
	return &RunStore{db: db}, nil
}

// #endregion

// #region put

// Put records a completed run.
func (s *RunStore) Put(run TrainingRun) error {
	idsJSON, err := json.Marshal(run.SampleIDs)
	if err != nil {
		return fmt.Errorf("marshal sample ids: %w", err)
	}
	impJSON, err := json.Marshal(run.FeatureImportance)
	if err != nil {
		return fmt.Errorf("marshal importances: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO training_runs
		 (run_id, family, sample_ids_json, sample_count, test_fraction, random_seed,
		  cv_folds, accuracy, auc, cross_val_score, importance_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Family), string(idsJSON), run.SampleCount,
		run.TestFraction, run.RandomSeed, run.CVFolds,
		run.Accuracy, run.AUC, run.CrossValScore, string(impJSON),
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// #endregion

// #region get

// Get retrieves a run by id.
func (s *RunStore) Get(id string) (TrainingRun, error) {
	row := s.db.QueryRow(
		`SELECT run_id, family, sample_ids_json, sample_count, test_fraction, random_seed,
		        cv_folds, accuracy, auc, cross_val_score, importance_json, created_at
		 FROM training_runs WHERE run_id = ?`, id,
	)
	return scanRun(row)
}

// #endregion

// #region list

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]TrainingRun, error) {
	rows, err := s.db.Query(
		`SELECT run_id, family, sample_ids_json, sample_count, test_fraction, random_seed,
		        cv_folds, accuracy, auc, cross_val_score, importance_json, created_at
		 FROM training_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// #endregion

// #region scan

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (TrainingRun, error) {
	var run TrainingRun
	var family, idsJSON, impJSON, createdStr string

	err := row.Scan(
		&run.ID, &family, &idsJSON, &run.SampleCount, &run.TestFraction,
		&run.RandomSeed, &run.CVFolds, &run.Accuracy, &run.AUC,
		&run.CrossValScore, &impJSON, &createdStr,
	)
	if err != nil {
		return TrainingRun{}, fmt.Errorf("scan run: %w", err)
	}
	run.Family = classifier.Family(family)
	if err := json.Unmarshal([]byte(idsJSON), &run.SampleIDs); err != nil {
		return TrainingRun{}, fmt.Errorf("unmarshal sample ids: %w", err)
	}
	if err := json.Unmarshal([]byte(impJSON), &run.FeatureImportance); err != nil {
		return TrainingRun{}, fmt.Errorf("unmarshal importances: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}

// #endregion
