// internal/locator/locator.go
package locator

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a global secondary index mapping checkpoint ids to the session
// that owns them, so resolving an id does not require scanning every
// session directory. It is strictly best-effort: rows are written after
// the checkpoint record lands and a lookup miss falls back to the scan,
// so a stale or missing locator can never make a checkpoint unreachable.
type Index struct {
	db *sql.DB
}

// Open creates or opens the locator database at the given path
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

// init creates the locator schema
func (i *Index) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);
	`

	_, err := i.db.Exec(schema)
	return err
}

// Add records which session owns a checkpoint
func (i *Index) Add(checkpointID, sessionID string) error {
	_, err := i.db.Exec(
		`INSERT OR REPLACE INTO checkpoints (id, session_id, created_at) VALUES (?, ?, ?)`,
		checkpointID, sessionID, time.Now().Unix(),
	)
	return err
}

// Lookup resolves a checkpoint id to its session id
func (i *Index) Lookup(checkpointID string) (string, bool) {
	var sessionID string
	err := i.db.QueryRow(
		`SELECT session_id FROM checkpoints WHERE id = ?`, checkpointID,
	).Scan(&sessionID)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// Remove drops a single checkpoint row
func (i *Index) Remove(checkpointID string) error {
	_, err := i.db.Exec(`DELETE FROM checkpoints WHERE id = ?`, checkpointID)
	return err
}

// RemoveSession drops every row belonging to a session
func (i *Index) RemoveSession(sessionID string) error {
	_, err := i.db.Exec(`DELETE FROM checkpoints WHERE session_id = ?`, sessionID)
	return err
}

// Close closes the underlying database
func (i *Index) Close() error {
	return i.db.Close()
}
