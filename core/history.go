package core

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Delivery is one journaled delivery attempt.
type Delivery struct {
	ID          int64
	Platform    string
	Destination string
	Size        int
	OK          bool
	Error       string
	SentAt      time.Time
}

// History is the delivery journal, backed by database/sql. The default
// backend is an embedded sqlite file; postgres is supported for shared
// deployments.
type History struct {
	db     *sql.DB
	driver string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	platform    TEXT NOT NULL,
	destination TEXT NOT NULL,
	size        INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	sent_at     TIMESTAMP NOT NULL
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id          BIGSERIAL PRIMARY KEY,
	platform    TEXT NOT NULL,
	destination TEXT NOT NULL,
	size        INTEGER NOT NULL,
	ok          BOOLEAN NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	sent_at     TIMESTAMPTZ NOT NULL
)`

// OpenHistory opens (and if needed initializes) the journal.
// driver is "sqlite" or "postgres".
func OpenHistory(driver, dsn string) (*History, error) {
	name := driver
	schema := sqliteSchema
	switch driver {
	case "sqlite", "":
		name, driver = "sqlite", "sqlite"
	case "postgres":
		name, schema = "pgx", postgresSchema
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	h := NewHistory(db, driver)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return h, nil
}

// NewHistory wraps an existing database handle. Used by OpenHistory and by
// tests that substitute a mock connection.
func NewHistory(db *sql.DB, driver string) *History {
	return &History{db: db, driver: driver}
}

// Record journals one delivery attempt. sendErr nil means success.
func (h *History) Record(platform, dest string, size int, sendErr error) error {
	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	_, err := h.db.Exec(
		h.rebind(`INSERT INTO deliveries (platform, destination, size, ok, error, sent_at) VALUES (?, ?, ?, ?, ?, ?)`),
		platform, dest, size, sendErr == nil, errText, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns the n most recent deliveries, newest first.
func (h *History) Recent(n int) ([]Delivery, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := h.db.Query(
		h.rebind(`SELECT id, platform, destination, size, ok, error, sent_at FROM deliveries ORDER BY id DESC LIMIT ?`),
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Platform, &d.Destination, &d.Size, &d.OK, &d.Error, &d.SentAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune drops everything but the newest keep entries.
func (h *History) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := h.db.Exec(
		h.rebind(`DELETE FROM deliveries WHERE id NOT IN (SELECT id FROM deliveries ORDER BY id DESC LIMIT ?)`),
		keep,
	)
	if err != nil {
		return fmt.Errorf("history: prune: %w", err)
	}
	return nil
}

func (h *History) Close() error { return h.db.Close() }

// rebind converts ? placeholders to the $N style pgx expects.
func (h *History) rebind(query string) string {
	if h.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
