package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aegisrisk/weightd/internal/weights"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS weight_versions (
	version_id      TEXT PRIMARY KEY,
	label           TEXT NOT NULL,
	state           TEXT NOT NULL,
	weights_json    TEXT NOT NULL,
	run_id          TEXT,
	family          TEXT,
	sample_count    INTEGER NOT NULL DEFAULT 0,
	accuracy        REAL NOT NULL DEFAULT 0,
	auc             REAL NOT NULL DEFAULT 0,
	cross_val_score REAL NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	approved_at     TEXT,
	last_active_at  TEXT
);

CREATE TABLE IF NOT EXISTS active_version (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version_id TEXT,
	FOREIGN KEY (version_id) REFERENCES weight_versions(version_id)
);

CREATE TABLE IF NOT EXISTS transition_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id  TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	note        TEXT,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES weight_versions(version_id)
);
`

// #endregion

// #region store

// Store manages weight versions in SQLite and enforces the lifecycle state
// machine, including the "exactly one active version" invariant. Lifecycle
// writes serialize behind a mutex plus an in-transaction compare-and-swap
// on the active pointer; reads are plain queries and are never blocked by
// an in-flight training run.
type Store struct {
	db *sql.DB

	// guards approve/activate/rollback read-modify-write sequences
	mu sync.Mutex
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO active_version (id, version_id) VALUES (1, NULL)`); err != nil {
		return nil, fmt.Errorf("init active pointer: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for packages that own their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion

// #region create

// Create inserts a new version. Training produces StateTrained; a seeded
// baseline may enter as StateApproved or StateActive directly. No other
// version is affected unless the new version enters active, in which case
// the same atomic pointer flip as Activate applies.
func (s *Store) Create(v WeightVersion) (WeightVersion, error) {
	if err := weights.Validate(v.Weights); err != nil {
		return WeightVersion{}, err
	}
	switch v.State {
	case StateTrained, StateApproved, StateActive:
	case "":
		v.State = StateTrained
	default:
		return WeightVersion{}, &InvalidStateTransitionError{ID: v.ID, From: v.State, Op: "create"}
	}

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.State == StateApproved || v.State == StateActive {
		v.ApprovedAt = now
	}

	wJSON, err := json.Marshal(v.Weights)
	if err != nil {
		return WeightVersion{}, fmt.Errorf("marshal weights: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return WeightVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	insertState := v.State
	if v.State == StateActive {
		// Insert as approved first; the pointer flip below promotes it.
		insertState = StateApproved
	}

	_, err = tx.Exec(
		`INSERT INTO weight_versions
		 (version_id, label, state, weights_json, run_id, family, sample_count,
		  accuracy, auc, cross_val_score, created_at, approved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Label, string(insertState), string(wJSON),
		nullIfEmpty(v.RunID), nullIfEmpty(v.Family), v.SampleCount,
		v.Accuracy, v.AUC, v.CrossValScore,
		v.CreatedAt.Format(time.RFC3339Nano), timePtr(v.ApprovedAt),
	)
	if err != nil {
		return WeightVersion{}, fmt.Errorf("insert version: %w", err)
	}

	if err := logTransition(tx, v.ID, "", insertState, "created"); err != nil {
		return WeightVersion{}, err
	}

	if v.State == StateActive {
		if err := s.flipActive(tx, v.ID, "activated at creation"); err != nil {
			return WeightVersion{}, err
		}
		v.LastActiveAt = now
	}

	if err := tx.Commit(); err != nil {
		return WeightVersion{}, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[REGISTRY] created version %s state=%s label=%q", v.ID, v.State, v.Label)
	return s.Get(v.ID)
}

// #endregion

// #region approve

// Approve moves a version from trained to approved.
func (s *Store) Approve(id string) (WeightVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return WeightVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cur, err := getTx(tx, id)
	if err != nil {
		return WeightVersion{}, err
	}
	if cur.State != StateTrained {
		return WeightVersion{}, &InvalidStateTransitionError{ID: id, From: cur.State, Op: "approve"}
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`UPDATE weight_versions SET state = ?, approved_at = ? WHERE version_id = ?`,
		string(StateApproved), now.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return WeightVersion{}, fmt.Errorf("approve: %w", err)
	}
	if err := logTransition(tx, id, StateTrained, StateApproved, "approved"); err != nil {
		return WeightVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return WeightVersion{}, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[REGISTRY] approved version %s", id)
	return s.Get(id)
}

// #endregion

// #region activate

// Activate promotes an approved version to active and atomically retires
// the previously active version. Exactly one version is active afterwards.
func (s *Store) Activate(id string) (WeightVersion, error) {
	return s.makeActive(id, "activate", func(cur WeightVersion) error {
		if cur.State != StateApproved {
			return &InvalidStateTransitionError{ID: id, From: cur.State, Op: "activate"}
		}
		return nil
	})
}

// Rollback re-activates a previously active version that is now retired or
// approved. The stored weight map is restored exactly as created: states
// flip, weight rows are never rewritten.
func (s *Store) Rollback(id string) (WeightVersion, error) {
	return s.makeActive(id, "rollback", func(cur WeightVersion) error {
		if cur.State != StateRetired && cur.State != StateApproved {
			return &InvalidStateTransitionError{ID: id, From: cur.State, Op: "rollback"}
		}
		if cur.LastActiveAt.IsZero() {
			return &InvalidStateTransitionError{ID: id, From: cur.State, Op: "rollback (never active)"}
		}
		return nil
	})
}

func (s *Store) makeActive(id, op string, guard func(WeightVersion) error) (WeightVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return WeightVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cur, err := getTx(tx, id)
	if err != nil {
		return WeightVersion{}, err
	}
	if err := guard(cur); err != nil {
		return WeightVersion{}, err
	}
	if err := s.flipActive(tx, id, op); err != nil {
		return WeightVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return WeightVersion{}, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[REGISTRY] %s: version %s is now active", op, id)
	return s.Get(id)
}

// flipActive retires the current active version (if any), marks target
// active, and compare-and-swaps the pointer. Runs inside the caller's tx so
// the whole flip is atomic: either both records move or neither does.
func (s *Store) flipActive(tx *sql.Tx, target, note string) error {
	var prev sql.NullString
	if err := tx.QueryRow(`SELECT version_id FROM active_version WHERE id = 1`).Scan(&prev); err != nil {
		return fmt.Errorf("read active pointer: %w", err)
	}
	if prev.Valid && prev.String == target {
		return &InvalidStateTransitionError{ID: target, From: StateActive, Op: note}
	}

	var prevArg interface{}
	if prev.Valid {
		prevArg = prev.String
	}
	res, err := tx.Exec(
		`UPDATE active_version SET version_id = ? WHERE id = 1 AND version_id IS ?`,
		target, prevArg,
	)
	if err != nil {
		return fmt.Errorf("swap active pointer: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return &ConcurrentActivationError{ID: target}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if prev.Valid {
		if _, err := tx.Exec(
			`UPDATE weight_versions SET state = ? WHERE version_id = ? AND state = ?`,
			string(StateRetired), prev.String, string(StateActive),
		); err != nil {
			return fmt.Errorf("retire previous active: %w", err)
		}
		if err := logTransition(tx, prev.String, StateActive, StateRetired, "displaced by "+target); err != nil {
			return err
		}
	}

	var fromState State
	if err := tx.QueryRow(`SELECT state FROM weight_versions WHERE version_id = ?`, target).
		Scan(&fromState); err != nil {
		return fmt.Errorf("read target state: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE weight_versions SET state = ?, last_active_at = ? WHERE version_id = ?`,
		string(StateActive), now, target,
	); err != nil {
		return fmt.Errorf("activate target: %w", err)
	}
	if err := logTransition(tx, target, fromState, StateActive, note); err != nil {
		return err
	}

	// Exactly-one-active invariant check before commit.
	var active int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM weight_versions WHERE state = ?`, string(StateActive),
	).Scan(&active); err != nil {
		return fmt.Errorf("count active: %w", err)
	}
	if active != 1 {
		return &ConcurrentActivationError{ID: target}
	}
	return nil
}

// #endregion

// #region reads

// Get retrieves a version by id.
func (s *Store) Get(id string) (WeightVersion, error) {
	return getQuerier(s.db, id)
}

// GetActive reads the active pointer and returns the active version.
func (s *Store) GetActive() (WeightVersion, error) {
	var id sql.NullString
	err := s.db.QueryRow(`SELECT version_id FROM active_version WHERE id = 1`).Scan(&id)
	if err != nil {
		return WeightVersion{}, fmt.Errorf("read active pointer: %w", err)
	}
	if !id.Valid {
		return WeightVersion{}, ErrNoActiveVersion
	}
	return s.Get(id.String)
}

// List returns versions newest first, optionally filtered by state.
func (s *Store) List(filter State) ([]WeightVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM weight_versions`
	args := []interface{}{}
	if filter != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter))
	}
	query += ` ORDER BY created_at DESC, version_id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []WeightVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Compare returns two versions side by side with per-category weight
// deltas. Does not mutate state.
func (s *Store) Compare(idA, idB string) (Comparison, error) {
	a, err := s.Get(idA)
	if err != nil {
		return Comparison{}, err
	}
	b, err := s.Get(idB)
	if err != nil {
		return Comparison{}, err
	}

	cats := make(map[string]bool)
	for c := range a.Weights {
		cats[c] = true
	}
	for c := range b.Weights {
		cats[c] = true
	}

	diffs := make(map[string]WeightDiff, len(cats))
	for c := range cats {
		wa, wb := a.Weights[c], b.Weights[c]
		d := WeightDiff{A: wa, B: wb, Diff: wb - wa}
		if wa > 0 {
			d.PctChange = (wb - wa) / wa * 100
		}
		diffs[c] = d
	}
	return Comparison{A: a, B: b, Diffs: diffs}, nil
}

// Transitions returns the audit log for one version, or for all versions
// when id is empty. Newest first.
func (s *Store) Transitions(id string, limit int) ([]Transition, error) {
	query := `SELECT version_id, from_state, to_state, note, created_at FROM transition_log`
	args := []interface{}{}
	if id != "" {
		query += ` WHERE version_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var from, to, createdStr string
		var note sql.NullString
		if err := rows.Scan(&t.VersionID, &from, &to, &note, &createdStr); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From = State(from)
		t.To = State(to)
		if note.Valid {
			t.Note = note.String
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion

// #region scan-helpers

const versionColumns = `version_id, label, state, weights_json, run_id, family,
	sample_count, accuracy, auc, cross_val_score, created_at, approved_at, last_active_at`

type querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func getQuerier(q querier, id string) (WeightVersion, error) {
	row := q.QueryRow(`SELECT `+versionColumns+` FROM weight_versions WHERE version_id = ?`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return WeightVersion{}, &UnknownVersionError{ID: id}
	}
	return v, err
}

func getTx(tx *sql.Tx, id string) (WeightVersion, error) {
	return getQuerier(tx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (WeightVersion, error) {
	var v WeightVersion
	var state, wJSON, createdStr string
	var runID, family, approvedStr, lastActiveStr sql.NullString

	err := row.Scan(
		&v.ID, &v.Label, &state, &wJSON, &runID, &family,
		&v.SampleCount, &v.Accuracy, &v.AUC, &v.CrossValScore,
		&createdStr, &approvedStr, &lastActiveStr,
	)
	if err != nil {
		return WeightVersion{}, err
	}
	v.State = State(state)
	if err := json.Unmarshal([]byte(wJSON), &v.Weights); err != nil {
		return WeightVersion{}, fmt.Errorf("unmarshal weights for %s: %w", v.ID, err)
	}
	if runID.Valid {
		v.RunID = runID.String
	}
	if family.Valid {
		v.Family = family.String
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if approvedStr.Valid {
		v.ApprovedAt, _ = time.Parse(time.RFC3339Nano, approvedStr.String)
	}
	if lastActiveStr.Valid {
		v.LastActiveAt, _ = time.Parse(time.RFC3339Nano, lastActiveStr.String)
	}
	return v, nil
}

func logTransition(tx *sql.Tx, id string, from, to State, note string) error {
	_, err := tx.Exec(
		`INSERT INTO transition_log (version_id, from_state, to_state, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, string(from), string(to), nullIfEmpty(note),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

// #endregion
