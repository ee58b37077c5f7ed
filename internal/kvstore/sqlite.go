package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteKV is a KV backed by a single SQLite table, accessed through
// database/sql with a single writer connection, WAL journal mode, and
// every mutation wrapped in a *sql.Tx.
//
// Keys and values are BLOBs; SQLite's default BLOB collation is a
// byte-wise memcmp, matching the byte-prefix ordering pathcodec keys
// rely on.
type SQLiteKV struct {
	db *sql.DB

	// commitMu serializes commit+publish pairs so that subscribers see
	// events from one transaction, in full, before any event from a
	// later transaction — the ordering guarantee prefix-watch promises.
	commitMu sync.Mutex
	watchers *watchRegistry
}

// Open opens (creating if necessary) a SQLite-backed KV at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer: avoids SQLITE_BUSY under our own transaction discipline

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &SQLiteKV{db: db, watchers: newWatchRegistry()}, nil
}

type sqlTx struct {
	tx     *sql.Tx
	events []Event // recorded only for Update transactions
}

func (t *sqlTx) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	return value, true, nil
}

func (t *sqlTx) Put(key, value []byte) error {
	if _, err := t.tx.Exec("INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	t.events = append(t.events, Event{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	return nil
}

func (t *sqlTx) Delete(key []byte) error {
	if _, err := t.tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	t.events = append(t.events, Event{Key: append([]byte(nil), key...), Removed: true})
	return nil
}

// Update runs fn inside one atomic sql.Tx, committing only if fn
// succeeds. A validation error from fn leaves no partial writes: the
// transaction is rolled back before Update returns.
func (kv *SQLiteKV) Update(ctx context.Context, fn func(tx Tx) error) error {
	kv.commitMu.Lock()
	defer kv.commitMu.Unlock()

	sqlTxHandle, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t := &sqlTx{tx: sqlTxHandle}

	if err := fn(t); err != nil {
		_ = sqlTxHandle.Rollback()
		return err
	}
	if err := sqlTxHandle.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if len(t.events) > 0 {
		kv.watchers.publish(t.events)
	}
	return nil
}

// View runs fn inside one read-only transaction.
func (kv *SQLiteKV) View(ctx context.Context, fn func(tx Tx) error) error {
	sqlTxHandle, err := kv.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = sqlTxHandle.Rollback() }()

	t := &sqlTx{tx: sqlTxHandle}
	return fn(t)
}

func (kv *SQLiteKV) Watch(prefix []byte) *Subscription {
	return kv.watchers.watch(prefix)
}

func (kv *SQLiteKV) Close() error {
	return kv.db.Close()
}
