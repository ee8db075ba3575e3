package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrLocalIDTaken is returned by InsertEcho when a row with the same local id
// already exists, for instance one left failed by an earlier run.
var ErrLocalIDTaken = errors.New("local id already stored")

// InsertEcho records a locally echoed message with status "sending". An
// existing row is never overwritten; use ResetEcho to resend it.
func (db *DB) InsertEcho(m *Message) error {
	now := time.Now().UnixMilli()
	if m.Status == "" {
		m.Status = StatusSending
	}
	_, err := db.Exec(`
		INSERT INTO messages (local_id, local_kind, server_id, message_type, stream, topic, recipient, content, status, error_message, timestamp, updated_at)
		VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		m.LocalID, m.LocalKind, m.MessageType, m.Stream, m.Topic, m.Recipient, m.Content, m.Status, m.Timestamp, now)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("message %s: %w", m.LocalID, ErrLocalIDTaken)
	}
	return err
}

// ResetEcho puts a failed message back to "sending" for a resend, keeping
// its content.
func (db *DB) ResetEcho(localID string) error {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE messages SET status = ?, error_message = '', updated_at = ? WHERE local_id = ?`,
		StatusSending, now, localID)
	if err != nil {
		return err
	}
	return expectOne(res, localID)
}

// FailedEchoes returns echoed messages left failed, oldest first.
func (db *DB) FailedEchoes() ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, local_id, local_kind, server_id, message_type, stream, topic, recipient, content, status, error_message, timestamp
		FROM messages
		WHERE status = ? AND local_kind = 'echoed'
		ORDER BY timestamp, id`, StatusFailed)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// ReifyMessage swaps the local id for the server-assigned id and marks the row sent.
func (db *DB) ReifyMessage(localID string, serverID int64) error {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE messages SET server_id = ?, status = ?, error_message = '', updated_at = ? WHERE local_id = ?`,
		serverID, StatusSent, now, localID)
	if err != nil {
		return err
	}
	return expectOne(res, localID)
}

// MarkMessageFailed flags an echoed message as failed in place.
func (db *DB) MarkMessageFailed(localID, errMsg string) error {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE messages SET status = ?, error_message = ?, updated_at = ? WHERE local_id = ?`,
		StatusFailed, errMsg, now, localID)
	if err != nil {
		return err
	}
	return expectOne(res, localID)
}

// GetMessage returns the message with the given local id, or nil.
func (db *DB) GetMessage(localID string) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, local_id, local_kind, server_id, message_type, stream, topic, recipient, content, status, error_message, timestamp
		FROM messages WHERE local_id = ?`, localID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMessages returns the newest echoed messages first.
func (db *DB) ListMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, local_id, local_kind, server_id, message_type, stream, topic, recipient, content, status, error_message, timestamp
		FROM messages
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MaxServerID returns the largest server id seen, used as the base of echoed local ids.
func (db *DB) MaxServerID() (int64, error) {
	var id sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(server_id) FROM messages`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// MessageCount returns the number of echoed messages.
func (db *DB) MessageCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.LocalID, &m.LocalKind, &m.ServerID, &m.MessageType, &m.Stream, &m.Topic,
		&m.Recipient, &m.Content, &m.Status, &m.ErrorMessage, &m.Timestamp); err != nil {
		return nil, err
	}
	return &m, nil
}

func expectOne(res sql.Result, localID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", localID, sql.ErrNoRows)
	}
	return nil
}
