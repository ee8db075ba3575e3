package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetLocal decodes the JSON value stored under key into v. It reports false
// when the key is missing or was written by a different version, in which
// case the stale value is discarded.
func (db *DB) GetLocal(key string, version int, v any) (bool, error) {
	var (
		stored int
		raw    string
	)
	err := db.QueryRow(`SELECT version, value FROM local_storage WHERE key = ?`, key).Scan(&stored, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != version {
		if err := db.RemoveLocal(key); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode local %q: %w", key, err)
	}
	return true, nil
}

// SetLocal stores v as JSON under key, replacing any previous value.
func (db *DB) SetLocal(key string, version int, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode local %q: %w", key, err)
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO local_storage (key, version, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, version, string(raw), now)
	return err
}

// RemoveLocal deletes key. Missing keys are not an error.
func (db *DB) RemoveLocal(key string) error {
	_, err := db.Exec(`DELETE FROM local_storage WHERE key = ?`, key)
	return err
}

// LocalKeys lists every stored key with its version.
func (db *DB) LocalKeys() ([]LocalValue, error) {
	rows, err := db.Query(`SELECT key, version, value, updated_at FROM local_storage ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []LocalValue
	for rows.Next() {
		var lv LocalValue
		if err := rows.Scan(&lv.Key, &lv.Version, &lv.Value, &lv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}
