package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the SQLite implementation of domain.Store and domain.DeliveryQueue.
// A DB returned by InTransaction is bound to one *sql.Tx and runs every
// statement inside it.
type DB struct {
	db *sql.DB
	tx *sql.Tx
}

var (
	_ domain.Store         = (*DB)(nil)
	_ domain.DeliveryQueue = (*DB)(nil)
)

const maxBusyRetries = 5

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database at path, tunes it for the concurrent inbox
// workload and runs the migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if path == ":memory:" {
		// every connection would get its own empty in-memory database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)

		var journalMode string
		if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			log.Warnf("Failed to enable WAL mode: %v", err)
		} else {
			log.Debugf("Database journal mode: %s", journalMode)
		}
	}

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			log.Warnf("Failed to apply %q: %v", pragma, err)
		}
	}

	d := &DB{db: sqlDB}
	if err := d.RunMigrations(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Infof("Database %s initialized", path)
	return d, nil
}

func (db *DB) Close() error {
	if db.tx != nil {
		return errors.New("close called on a transaction-bound DB")
	}
	return db.db.Close()
}

func (db *DB) q() querier {
	if db.tx != nil {
		return db.tx
	}
	return db.db
}

// InTransaction runs fn against a DB bound to a single transaction. Nested
// calls reuse the outer transaction.
func (db *DB) InTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if db.tx != nil {
		return fn(db)
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&DB{db: db.db, tx: tx})
	})
}

// wrapTransaction runs the given function within a transaction. A busy
// database rolls the attempt back and retries it on a fresh transaction.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	if db.tx != nil {
		return f(db.tx)
	}
	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		err = db.runTransaction(ctx, f)
		if !isBusy(err) {
			return err
		}
		log.Debugf("Database busy, retrying transaction (attempt %d)", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
	return err
}

func (db *DB) runTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Errorf("error starting transaction: %s", err)
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("error rolling back transaction: %s", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Errorf("error committing transaction: %s", err)
		return err
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff // primary code of extended results
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return false
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// expectRow reports domain.ErrNotFound when a statement touched nothing.
func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nowOr(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
