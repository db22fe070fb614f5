package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bidscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS preferences (
	email      TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_history (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	user_email    TEXT NOT NULL,
	search_id     TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL,
	criteria      TEXT NOT NULL,
	opportunities TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_search_history_email_seq ON search_history(user_email, seq DESC);
`

const historyColumns = `id, user_email, search_id, label, criteria, opportunities, created_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, email string, req model.SearchRequest) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return eris.New("sqlite: save preferences: empty email")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preferences")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (email, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		email, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save preferences for %s", email)
}

func (s *SQLiteStore) LoadPreferences(ctx context.Context, email string) (*model.SearchRequest, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM preferences WHERE email = ?`,
		model.NormalizeEmail(email),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load preferences")
	}

	var req model.SearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal preferences")
	}
	return &req, nil
}

func (s *SQLiteStore) AddHistory(ctx context.Context, entry *model.HistoryEntry, limit int) error {
	limit, err := prepareEntry(entry, limit)
	if err != nil {
		return err
	}
	enc, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin history tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO search_history (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserEmail, entry.SearchID, entry.Label,
		string(enc.criteria), string(enc.opportunities), entry.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert history")
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM search_history WHERE user_email = ? AND seq NOT IN (
			SELECT seq FROM search_history WHERE user_email = ? ORDER BY seq DESC LIMIT ?
		)`,
		entry.UserEmail, entry.UserEmail, limit,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: evict history")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logEviction(entry.UserEmail, n)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit history")
}

func (s *SQLiteStore) ListHistory(ctx context.Context, email string) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM search_history WHERE user_email = ? ORDER BY seq DESC`,
		model.NormalizeEmail(email),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.HistoryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

func (s *SQLiteStore) GetHistory(ctx context.Context, id string) (*model.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM search_history WHERE id = ?`, id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: history %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get history %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, email string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE user_email = ?`, model.NormalizeEmail(email),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear history")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

var _ Store = (*SQLiteStore)(nil)
