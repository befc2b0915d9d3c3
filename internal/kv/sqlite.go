package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const table = "kv_entries"

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// SQLite is a Store persisted in a single SQLite file.
type SQLite struct {
	db    *sql.DB
	quota int
}

// OpenSQLite opens (or creates) the database at path and applies the
// embedded schema migrations.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	o := applyOptions(opts)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
		}
	}
	if err := runMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening kv db: %w", err)
	}
	// One connection serialises writers so the quota check and the write
	// see the same usage.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging kv db: %w", err)
	}
	return &SQLite{db: db, quota: o.quota}, nil
}

func runMigrations(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading kv migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running kv migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := builder.Select("value").From(table).
		Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building get: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning write: %w", err)
	}
	defer tx.Rollback()

	if s.quota > 0 {
		used, oldSize, err := s.usage(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := checkQuota(s.quota, used, oldSize, key, value); err != nil {
			return err
		}
	}

	query, args, err := builder.Insert(table).
		Columns("key", "value", "updated_at").
		Values(key, value, squirrel.Expr("CURRENT_TIMESTAMP")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building set: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return tx.Commit()
}

// usage returns the total stored bytes and the bytes held by key.
func (s *SQLite) usage(ctx context.Context, tx *sql.Tx, key string) (used, keySize int, err error) {
	const size = "LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))"
	query, args, err := builder.
		Select("COALESCE(SUM(" + size + "), 0)").
		Column(squirrel.Expr("COALESCE(SUM(CASE WHEN key = ? THEN "+size+" ELSE 0 END), 0)", key)).
		From(table).ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("building usage: %w", err)
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&used, &keySize); err != nil {
		return 0, 0, fmt.Errorf("measuring usage: %w", err)
	}
	return used, keySize, nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	query, args, err := builder.Delete(table).Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building remove: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys in sorted order.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	query, args, err := builder.Select("key").From(table).OrderBy("key ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building keys: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
