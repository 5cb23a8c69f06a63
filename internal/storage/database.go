// Package storage persists chat and moderation events to sqlite so bot
// owners can review channel activity after the fact.
package storage

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	channel   TEXT NOT NULL,
	sender    TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_channel_time ON records(channel, timestamp);
`

// ChatLog is a sqlite-backed log of chat activity.
type ChatLog struct {
	db *sqlx.DB
}

// Open opens (or creates) the chat log at path. ":memory:" gives an
// ephemeral log.
func Open(path string) (*ChatLog, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}

	// SQLite behaves best with one writer connection in WAL mode.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat log migration: %w", err)
	}
	return &ChatLog{db: db}, nil
}

// Write appends one record. A zero timestamp is filled with the current
// time.
func (l *ChatLog) Write(record Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := l.db.NamedExec(
		`INSERT INTO records (channel, sender, body, kind, timestamp)
		 VALUES (:channel, :sender, :body, :kind, :timestamp)`,
		record,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Recent returns up to limit records for channel, newest first.
func (l *ChatLog) Recent(channel string, limit int) ([]Record, error) {
	var records []Record
	err := l.db.Select(&records,
		`SELECT id, channel, sender, body, kind, timestamp
		 FROM records WHERE channel = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (l *ChatLog) Close() error {
	return l.db.Close()
}
