package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		doc        TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
`

// SQLiteStore keeps one JSON document row per conversation.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(err, apperrors.StoreFailed, "create database directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "open database")
	}
	// a single connection serializes read-modify-write merges and keeps an
	// in-memory database alive across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "ping database")
	}
	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, apperrors.Wrap(err, apperrors.StoreFailed, "initialize schema")
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	doc, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return doc.conversation()
}

func (s *SQLiteStore) Put(ctx context.Context, c *Conversation) error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	doc, err := encodeConversation(c)
	if err != nil {
		return err
	}
	if err := doc.apply(nil, now()); err != nil {
		return err
	}
	data, err := doc.bytes()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, c.ID, string(data))
	if err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "upsert conversation")
	}
	return nil
}

func (s *SQLiteStore) Merge(ctx context.Context, id string, f Fields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "begin merge")
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.load(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := doc.apply(f, now()); err != nil {
		return err
	}
	data, err := doc.bytes()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET doc = ? WHERE id = ?`, string(data), id); err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "update conversation")
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "commit merge")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM conversations ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "query conversations")
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.Wrap(err, apperrors.StoreFailed, "scan conversation")
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, err
		}
		c, err := doc.conversation()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "iterate conversations")
	}
	sortConversations(out)
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "delete conversation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q queryer, id string) (document, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT doc FROM conversations WHERE id = ?`, id).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "load conversation")
	}
	return decodeDocument([]byte(raw))
}
