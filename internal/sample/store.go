package sample

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema

const samplesSchema = `
CREATE TABLE IF NOT EXISTS labeled_samples (
	sample_id        TEXT PRIMARY KEY,
	counterparty_ref TEXT,
	features_json    TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	recorded_at      TEXT NOT NULL
);
`

const samplesIndex = `
CREATE INDEX IF NOT EXISTS idx_labeled_samples_outcome
ON labeled_samples(outcome);
`

// #endregion

// #region store

// Store persists labeled samples in SQLite and implements Source.
type Store struct {
	db *sql.DB
}

// NewStore initializes the labeled_samples table and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(samplesSchema); err != nil {
		return nil, fmt.Errorf("migrate samples: %w", err)
	}
	if _, err := db.Exec(samplesIndex); err != nil {
		return nil, fmt.Errorf("index samples: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion

// #region add

// Add records one labeled sample. Samples are immutable once written.
func (s *Store) Add(rec LabeledSample) (LabeledSample, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if rec.Outcome != OutcomeFavorable && rec.Outcome != OutcomeUnfavorable {
		return LabeledSample{}, fmt.Errorf("unknown outcome %q", rec.Outcome)
	}

	featJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return LabeledSample{}, fmt.Errorf("marshal features: %w", err)
	}

	var refPtr interface{}
	if rec.CounterpartyRef != "" {
		refPtr = rec.CounterpartyRef
	}

	_, err = s.db.Exec(
		`INSERT INTO labeled_samples (sample_id, counterparty_ref, features_json, outcome, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, refPtr, string(featJSON), string(rec.Outcome),
		rec.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return LabeledSample{}, fmt.Errorf("insert sample: %w", err)
	}
	return rec, nil
}

// #endregion

// #region labeled-samples

// LabeledSamples returns every recorded sample, oldest first.
func (s *Store) LabeledSamples() ([]LabeledSample, error) {
	rows, err := s.db.Query(
		`SELECT sample_id, counterparty_ref, features_json, outcome, recorded_at
		 FROM labeled_samples ORDER BY recorded_at ASC, sample_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var samples []LabeledSample
	for rows.Next() {
		var rec LabeledSample
		var ref sql.NullString
		var featJSON string
		var outcome string
		var recordedStr string

		if err := rows.Scan(&rec.ID, &ref, &featJSON, &outcome, &recordedStr); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if ref.Valid {
			rec.CounterpartyRef = ref.String
		}
		if err := json.Unmarshal([]byte(featJSON), &rec.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features for %s: %w", rec.ID, err)
		}
		rec.Outcome = Outcome(outcome)
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedStr)
		samples = append(samples, rec)
	}
	return samples, rows.Err()
}

// #endregion

// #region count

// Count returns the number of recorded samples.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM labeled_samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// #endregion
