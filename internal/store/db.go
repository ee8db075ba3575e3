// Package store is the daemon's sqlite database: versioned local storage
// (the unsent drafts) and the messages echoed or tracked by this client.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// InterruptedError is recorded on messages still "sending" when the
// previous daemon exited.
const InterruptedError = "interrupted by daemon restart"

// DB is the app-owned zpp.db.
type DB struct {
	*sql.DB
}

// Open opens path in WAL mode. The pool is a single connection so
// local-storage read-modify-write cycles never interleave.
func Open(path string) (*DB, error) {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// FailInterrupted marks every message left in "sending" as failed and
// returns how many were touched. Run once at startup: nothing is in flight
// before the event poller and sender exist.
func (db *DB) FailInterrupted() (int64, error) {
	res, err := db.Exec(`UPDATE messages SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusFailed, InterruptedError, time.Now().UnixMilli(), StatusSending)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted sends: %w", err)
	}
	return res.RowsAffected()
}
