// Package artifact stores fitted classifier models as opaque blobs keyed by
// training-run id. The registry only needs the derived weight mapping to
// operate; the raw model is kept solely for audit and offline inspection.
package artifact

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const artifactsSchema = `
CREATE TABLE IF NOT EXISTS model_artifacts (
	run_id     TEXT PRIMARY KEY,
	family     TEXT NOT NULL,
	blob       BLOB NOT NULL,
	created_at TEXT NOT NULL
);
`

// #endregion

// #region store

// Store persists model blobs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the model_artifacts table and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(artifactsSchema); err != nil {
		return nil, fmt.Errorf("migrate artifacts: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion

// #region put

// Put stores a model blob under its run id. One blob per run.
func (s *Store) Put(runID, family string, blob []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO model_artifacts (run_id, family, blob, created_at) VALUES (?, ?, ?, ?)`,
		runID, family, blob, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// #endregion

// #region get

// Get loads the blob and family for a run id.
func (s *Store) Get(runID string) (family string, blob []byte, err error) {
	err = s.db.QueryRow(
		`SELECT family, blob FROM model_artifacts WHERE run_id = ?`, runID,
	).Scan(&family, &blob)
	if err != nil {
		return "", nil, fmt.Errorf("get artifact %s: %w", runID, err)
	}
	return family, blob, nil
}

// #endregion
