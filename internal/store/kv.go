package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// KV is the persistence boundary: a string-keyed blob table backed by SQLite.
// Anything with get/set-by-key semantics would do; SQLite gives us a single
// durable file.
type KV struct {
	db *sql.DB
}

func OpenKV(dataSourceName string) (*KV, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	kv := &KV{db: db}
	if err = kv.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return kv, nil
}

func (kv *KV) Close() error {
	return kv.db.Close()
}

func (kv *KV) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS kv (
        key   TEXT PRIMARY KEY,
        value BLOB NOT NULL
    );
    `
	_, err := kv.db.Exec(schema)
	return err
}

// Get returns the value stored under key, or nil if the key is absent.
func (kv *KV) Get(key string) ([]byte, error) {
	var value []byte
	err := kv.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query key %q: %w", key, err)
	}
	return value, nil
}

func (kv *KV) Put(key string, value []byte) error {
	stmt, err := kv.db.Prepare("INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return fmt.Errorf("failed to prepare kv upsert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(key, value); err != nil {
		return fmt.Errorf("failed to execute kv upsert for %q: %w", key, err)
	}
	return nil
}

func (kv *KV) Delete(key string) error {
	if _, err := kv.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
