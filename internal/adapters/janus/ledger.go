package janus

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Orphan is an external room whose destroy call failed.
type Orphan struct {
	RoomID     string
	Reason     string
	RecordedAt time.Time
	Attempts   int
}

// Ledger remembers orphaned rooms until a later destroy succeeds.
type Ledger interface {
	Record(ctx context.Context, roomID, reason string) error
	List(ctx context.Context) ([]Orphan, error)
	Attempted(ctx context.Context, roomID string) error
	Remove(ctx context.Context, roomID string) error
	Close() error
}

type MemoryLedger struct {
	mu    sync.Mutex
	items map[string]Orphan
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{items: make(map[string]Orphan)}
}

func (l *MemoryLedger) Record(_ context.Context, roomID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.items[roomID]
	if !ok {
		o = Orphan{RoomID: roomID, RecordedAt: time.Now().UTC()}
	}
	o.Reason = reason
	l.items[roomID] = o
	return nil
}

func (l *MemoryLedger) List(context.Context) ([]Orphan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Orphan, 0, len(l.items))
	for _, o := range l.items {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (l *MemoryLedger) Attempted(_ context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.items[roomID]; ok {
		o.Attempts++
		l.items[roomID] = o
	}
	return nil
}

func (l *MemoryLedger) Remove(_ context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.items, roomID)
	return nil
}

func (l *MemoryLedger) Close() error { return nil }

// SQLiteLedger keeps orphans across restarts.
type SQLiteLedger struct {
	db *sql.DB
}

func OpenSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = NORMAL;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS orphan_rooms (
	room_id     TEXT PRIMARY KEY,
	reason      TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Record(ctx context.Context, roomID, reason string) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO orphan_rooms (room_id, reason, recorded_at) VALUES (?, ?, ?)
ON CONFLICT(room_id) DO UPDATE SET reason = excluded.reason;`,
		roomID, reason, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record orphan %s: %w", roomID, err)
	}
	return nil
}

func (l *SQLiteLedger) List(ctx context.Context) ([]Orphan, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT room_id, reason, recorded_at, attempts FROM orphan_rooms ORDER BY recorded_at ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	defer rows.Close()

	var out []Orphan
	for rows.Next() {
		var (
			o  Orphan
			ms int64
		)
		if err := rows.Scan(&o.RoomID, &o.Reason, &ms, &o.Attempts); err != nil {
			return nil, fmt.Errorf("scan orphan: %w", err)
		}
		o.RecordedAt = time.UnixMilli(ms).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Attempted(ctx context.Context, roomID string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE orphan_rooms SET attempts = attempts + 1 WHERE room_id = ?;`, roomID)
	return err
}

func (l *SQLiteLedger) Remove(ctx context.Context, roomID string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM orphan_rooms WHERE room_id = ?;`, roomID)
	return err
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
