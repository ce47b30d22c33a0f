package nvs

import (
	"database/sql"
	_ "embed"

	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a Store persisted in a SQLite database file. Each handle's
// buffered writes are committed in one transaction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Annotate(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "connect to database")
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Annotatef(err, "execute %q", pragma)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "apply schema")
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open opens namespace.
func (s *SQLite) Open(namespace string, readOnly bool) (Namespace, error) {
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}

	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM namespaces WHERE name = ?", namespace).Scan(&exists)
	if err != nil {
		return nil, errors.Annotatef(err, "look up namespace %q", namespace)
	}
	if exists == 0 {
		if readOnly {
			return nil, errors.Annotatef(ErrNotFound, "open %q", namespace)
		}
		if _, err := s.db.Exec("INSERT OR IGNORE INTO namespaces (name) VALUES (?)", namespace); err != nil {
			return nil, errors.Annotatef(err, "create namespace %q", namespace)
		}
	}
	return newHandle(namespace, readOnly, s), nil
}

func (s *SQLite) get(namespace, key string) (entry, bool, error) {
	var e entry
	err := s.db.QueryRow(
		"SELECT kind, value FROM entries WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&e.kind, &e.value)
	if err == sql.ErrNoRows {
		return entry{}, false, nil
	}
	if err != nil {
		return entry{}, false, errors.Annotatef(err, "read %s/%s", namespace, key)
	}
	return e, true, nil
}

func (s *SQLite) commit(namespace string, writes map[string]entry) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Annotate(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("INSERT OR IGNORE INTO namespaces (name) VALUES (?)", namespace); err != nil {
		return errors.Annotatef(err, "create namespace %q", namespace)
	}
	for key, e := range writes {
		_, err = tx.Exec(
			`INSERT INTO entries (namespace, key, kind, value) VALUES (?, ?, ?, ?)
			 ON CONFLICT (namespace, key) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
			namespace, key, e.kind, e.value,
		)
		if err != nil {
			return errors.Annotatef(err, "write %s/%s", namespace, key)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Annotate(err, "commit transaction")
	}
	return nil
}
