// Package store owns the on-disk SQLite database: opening it, applying
// the schema, serializing writers across processes with an advisory
// file lock, and announcing committed changes to other processes via a
// zero-byte sibling file that a fsnotify watcher observes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/go-mkcal/mkcal/internal/schema"
)

// EnvDBPath is the environment variable consulted for the database
// path when the caller does not pass one explicitly.
const EnvDBPath = "MKCAL_DB_PATH"

const changeFileSuffix = ".changed"
const lockFileSuffix = ".lock"

// Engine owns the database connection, the inter-process lock, and the
// change-notification watcher for a single calendar database file.
type Engine struct {
	db         *sql.DB
	dbPath     string
	changePath string

	fileLock *flock.Flock

	mu       sync.RWMutex
	watchers []func()

	fsWatcher *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
}

// Open resolves the database path (explicit argument, then
// MKCAL_DB_PATH, then a well-known per-user data directory), opens the
// SQLite connection in WAL mode, applies the schema, and creates the
// change-notification file. The watcher is started separately by
// WatchExternalChanges.
func Open(dbPath string) (*Engine, error) {
	dbPath = resolvePath(dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, wrap(ErrUnknown, "store: create data directory", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, wrap(ErrUnknown, "store: open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrap(ErrUnknown, "store: ping database", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		db:         db,
		dbPath:     dbPath,
		changePath: dbPath + changeFileSuffix,
		fileLock:   flock.New(dbPath + lockFileSuffix),
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := e.initSchema(); err != nil {
		cancel()
		db.Close()
		return nil, err
	}
	if _, err := os.OpenFile(e.changePath, os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
		log.Warn().Err(err).Msg("store: create change-notification file failed")
	}

	return e, nil
}

func resolvePath(dbPath string) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv(EnvDBPath); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "mkcal", "calendar.db")
}

func (e *Engine) initSchema() error {
	if _, err := e.db.ExecContext(e.ctx, schema.DDL); err != nil {
		return wrap(ErrUnknown, "store: init schema", err)
	}
	return nil
}

// DB returns the underlying connection for package-internal callers
// (codec, calendar facade) that need direct query access.
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the resolved database file path.
func (e *Engine) Path() string { return e.dbPath }

// Close stops the watcher, checkpoints the WAL, and closes the
// connection.
func (e *Engine) Close() error {
	e.cancel()
	if e.fsWatcher != nil {
		e.fsWatcher.Close()
	}
	if _, err := e.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn().Err(err).Msg("store: wal checkpoint failed")
	}
	return e.db.Close()
}

// Lock acquires the inter-process advisory lock, retrying with bounded
// exponential backoff, and returns an unlock function.
func (e *Engine) Lock(ctx context.Context) (func(), error) {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(500*time.Millisecond),
		backoff.WithMaxElapsedTime(5*time.Second),
	), ctx)

	err := backoff.Retry(func() error {
		ok, err := e.fileLock.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return fmt.Errorf("store: database locked by another process")
		}
		return nil
	}, bo)
	if err != nil {
		return nil, wrap(ErrLocked, "store: acquire lock", err)
	}
	return func() {
		if err := e.fileLock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("store: unlock failed")
		}
	}, nil
}

// NextTransactionID atomically increments and returns the persistent
// transaction counter within tx. Every data-changing commit must call
// this so change handlers can compare the result against the last id
// they accounted for, as a monotonic watermark.
func NextTransactionID(tx *sql.Tx) (int64, error) {
	if _, err := tx.Exec(`UPDATE metadata SET value = CAST(value AS INTEGER) + 1 WHERE key = 'transaction_id'`); err != nil {
		return 0, wrap(ErrUnknown, "store: bump transaction id", err)
	}
	var v string
	if err := tx.QueryRow(`SELECT value FROM metadata WHERE key = 'transaction_id'`).Scan(&v); err != nil {
		return 0, wrap(ErrUnknown, "store: read transaction id", err)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, wrap(ErrUnknown, "store: parse transaction id", err)
	}
	return id, nil
}

// TransactionID returns the current transaction watermark without
// starting a write transaction.
func (e *Engine) TransactionID() (int64, error) {
	var v string
	if err := e.db.QueryRow(`SELECT value FROM metadata WHERE key = 'transaction_id'`).Scan(&v); err != nil {
		return 0, wrap(ErrUnknown, "store: read transaction id", err)
	}
	return strconv.ParseInt(v, 10, 64)
}

// NotifyChanged truncates the change-notification file to zero bytes
// (creating it if missing) so sibling processes' fsnotify watchers
// wake up. Must be called after a data-changing commit, outside the
// write transaction.
func (e *Engine) NotifyChanged() {
	if err := os.Truncate(e.changePath, 0); err != nil {
		f, ferr := os.OpenFile(e.changePath, os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			f.Close()
		} else {
			log.Warn().Err(err).Msg("store: touch change-notification file failed")
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, w := range e.watchers {
		w()
	}
}

// OnChange registers a callback invoked whenever this process commits a
// data-changing transaction or observes one from another process via
// the change-notification file.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchers = append(e.watchers, fn)
}

// WatchExternalChanges starts a fsnotify watcher on the
// change-notification file so writes from other processes invoke the
// registered OnChange callbacks too. Safe to call once per Engine.
func (e *Engine) WatchExternalChanges() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return wrap(ErrUnknown, "store: create fsnotify watcher", err)
	}
	if err := w.Add(filepath.Dir(e.changePath)); err != nil {
		w.Close()
		return wrap(ErrUnknown, "store: watch data directory", err)
	}
	e.fsWatcher = w

	go func() {
		for {
			select {
			case <-e.ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(e.changePath) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Chmod|fsnotify.Create) == 0 {
					continue
				}
				e.mu.RLock()
				for _, fn := range e.watchers {
					fn()
				}
				e.mu.RUnlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("store: fsnotify watcher error")
			}
		}
	}()
	return nil
}
