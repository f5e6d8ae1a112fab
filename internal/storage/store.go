package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devblac/root-relay/internal/chain"
)

// Store wraps SQLite-backed persistence for the processed-height cursor and
// the relay attempt audit log.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  source_id   TEXT PRIMARY KEY,
  height      INTEGER NOT NULL,
  hash        TEXT NOT NULL,
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS relays (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  height      INTEGER NOT NULL,
  state_root  TEXT NOT NULL,
  tx_hash     TEXT,
  status      TEXT NOT NULL,
  error       TEXT,
  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertCursor records the latest processed height/hash for a source.
func (s *Store) UpsertCursor(ctx context.Context, sourceID string, height uint64, hash string) error {
	if sourceID == "" {
		return errors.New("sourceID required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (source_id, height, hash, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(source_id) DO UPDATE SET
  height=excluded.height,
  hash=excluded.hash,
  updated_at=CURRENT_TIMESTAMP;
`, sourceID, height, hash)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a source.
func (s *Store) GetCursor(ctx context.Context, sourceID string) (height uint64, hash string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT height, hash FROM cursors WHERE source_id = ?;
`, sourceID)
	switch err = row.Scan(&height, &hash); err {
	case nil:
		return height, hash, true, nil
	case sql.ErrNoRows:
		return 0, "", false, nil
	default:
		return 0, "", false, fmt.Errorf("get cursor: %w", err)
	}
}

// Relay statuses recorded in the audit log.
const (
	RelaySent   = "sent"
	RelayFailed = "failed"
)

// Relay is one state-root submission attempt.
type Relay struct {
	ID        int64
	Height    uint64
	StateRoot string
	TxHash    string
	Status    string
	Error     string
	CreatedAt time.Time
}

// InsertRelay appends a submission attempt to the audit log.
func (s *Store) InsertRelay(ctx context.Context, r Relay) error {
	if r.Status == "" {
		return errors.New("relay status required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO relays (height, state_root, tx_hash, status, error)
VALUES (?, ?, ?, ?, ?);
`, r.Height, r.StateRoot, r.TxHash, r.Status, r.Error)
	if err != nil {
		return fmt.Errorf("insert relay: %w", err)
	}
	return nil
}

// RecentRelays returns the newest attempts first, up to limit.
func (s *Store) RecentRelays(ctx context.Context, limit int) ([]Relay, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, height, state_root, tx_hash, status, error, created_at
FROM relays ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent relays: %w", err)
	}
	defer rows.Close()

	var out []Relay
	for rows.Next() {
		var r Relay
		var txHash, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Height, &r.StateRoot, &txHash, &r.Status, &errText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relay: %w", err)
		}
		r.TxHash = txHash.String
		r.Error = errText.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent relays: %w", err)
	}
	return out, nil
}

// AckRecorder persists liveness acknowledgements as the source cursor. The
// follower reads the same record, so an acknowledged height is exactly the
// height polling resumes after.
type AckRecorder struct {
	Store    *Store
	SourceID string
}

// Ack records that everything up to and including tip is fully processed.
func (a *AckRecorder) Ack(ctx context.Context, tip chain.NumHash) error {
	return a.Store.UpsertCursor(ctx, a.SourceID, tip.Number, tip.Hash.Hex())
}
