// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary as a single file.
// No separate database server to install, configure, or manage. Use ":memory:"
// for a throwaway database in tests.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// REFERENCES WITHOUT FOREIGN KEYS:
// The tables below deliberately declare no FOREIGN KEY constraints. References
// between collections are enforced by internal/integrity so that a rejected
// delete produces the API's own conflict message rather than a driver error.
//
// Each collection is exposed as its own store (db.Users(), db.Offers(), ...),
// all sharing one connection pool.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
)

// DB wraps a sql.DB connection pool and hands out per-collection stores.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/agromarket.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Users() *UserStore         { return &UserStore{db: db} }
func (db *DB) Categories() *CategoryStore { return &CategoryStore{db: db} }
func (db *DB) Products() *ProductStore   { return &ProductStore{db: db} }
func (db *DB) Offers() *OfferStore       { return &OfferStore{db: db} }
func (db *DB) Orders() *OrderStore       { return &OrderStore{db: db} }
func (db *DB) Sessions() *SessionStore   { return &SessionStore{db: db} }

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				name           TEXT NOT NULL UNIQUE,
				email          TEXT NOT NULL UNIQUE,
				password_hash  TEXT NOT NULL,
				email_verified INTEGER NOT NULL DEFAULT 0,
				auto_login     INTEGER NOT NULL DEFAULT 1,
				roles          TEXT NOT NULL DEFAULT '["user"]',
				mobile_number  TEXT NOT NULL DEFAULT '',
				picture        TEXT NOT NULL DEFAULT '',
				created_at     DATETIME NOT NULL,
				updated_at     DATETIME NOT NULL
			);`},
		{"categories", `
			CREATE TABLE IF NOT EXISTS categories (
				id            TEXT PRIMARY KEY,
				category_name TEXT NOT NULL UNIQUE,
				main_category TEXT NOT NULL UNIQUE
			);`},
		{"products", `
			CREATE TABLE IF NOT EXISTS products (
				id           TEXT PRIMARY KEY,
				category_id  TEXT NOT NULL,
				product_name TEXT NOT NULL UNIQUE,
				picture_url  TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_products_category_id ON products(category_id);`},
		{"offers", `
			CREATE TABLE IF NOT EXISTS offers (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				product_id  TEXT NOT NULL,
				offer_start DATETIME NOT NULL,
				offer_end   DATETIME,
				unit        TEXT NOT NULL,
				unit_price  INTEGER NOT NULL,
				quantity    INTEGER NOT NULL DEFAULT 0,
				picture_url TEXT NOT NULL DEFAULT '',
				info        TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_offers_user_id ON offers(user_id);
			CREATE INDEX IF NOT EXISTS idx_offers_product_id ON offers(product_id);`},
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				order_date DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
			CREATE TABLE IF NOT EXISTS order_details (
				id       TEXT PRIMARY KEY,
				order_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				offer_id TEXT NOT NULL,
				quantity INTEGER NOT NULL,
				stars    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_order_details_order_id ON order_details(order_id);
			CREATE INDEX IF NOT EXISTS idx_order_details_offer_id ON order_details(offer_id);`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id         TEXT PRIMARY KEY,
				data       BLOB NOT NULL,
				expires_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}
	return nil
}

// exists runs SELECT EXISTS over table.column = id. table and column are
// package constants, never caller input.
func (db *DB) exists(ctx context.Context, table, column string, id xid.ID) (bool, error) {
	var found bool
	q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)`, table, column)
	if err := db.conn.QueryRowContext(ctx, q, id).Scan(&found); err != nil {
		return false, fmt.Errorf("sqlite: checking %s.%s: %w", table, column, err)
	}
	return found, nil
}

// deleteByID removes one row and reports NotFound when there was none.
func (db *DB) deleteByID(ctx context.Context, table, kind string, id xid.ID) error {
	res, err := db.conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", kind, id, err)
	}
	return requireAffected(res, kind, id)
}

func requireAffected(res sql.Result, kind string, id xid.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(kind, id.String())
	}
	return nil
}

// uniqueViolation translates a UNIQUE constraint failure into a duplicate
// error naming the column. values maps column name to the offending value.
// Other errors are returned unchanged.
func uniqueViolation(err error, values map[string]string) error {
	var se *msqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	// Message shape: "... UNIQUE constraint failed: users.email (2067)"
	msg := se.Error()
	column := ""
	if fields := strings.Fields(msg[strings.LastIndex(msg, ".")+1:]); len(fields) > 0 {
		column = fields[0]
	}
	return apperror.Duplicate(column, values[column])
}
