package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/db"
	"github.com/sells-group/bidscout/internal/model"
)

// PostgresStore implements Store using pgxpool. It lets a team share
// preferences and history across machines.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS preferences (
	email      TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_history (
	seq           BIGSERIAL PRIMARY KEY,
	id            TEXT NOT NULL UNIQUE DEFAULT gen_random_uuid()::text,
	user_email    TEXT NOT NULL,
	search_id     TEXT NOT NULL DEFAULT '',
	label         TEXT NOT NULL,
	criteria      JSONB NOT NULL,
	opportunities JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_history_email_seq ON search_history(user_email, seq DESC);
`

var preferencesUpsert = db.UpsertConfig{
	Table:        "preferences",
	Columns:      []string{"email", "payload", "updated_at"},
	ConflictKeys: []string{"email"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePreferences(ctx context.Context, email string, req model.SearchRequest) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return eris.New("postgres: save preferences: empty email")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal preferences")
	}
	query, err := db.UpsertSQL(preferencesUpsert)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, query, email, payload, time.Now().UTC())
	return eris.Wrapf(err, "postgres: save preferences for %s", email)
}

func (s *PostgresStore) LoadPreferences(ctx context.Context, email string) (*model.SearchRequest, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM preferences WHERE email = $1`,
		model.NormalizeEmail(email),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load preferences")
	}

	var req model.SearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal preferences")
	}
	return &req, nil
}

func (s *PostgresStore) AddHistory(ctx context.Context, entry *model.HistoryEntry, limit int) error {
	limit, err := prepareEntry(entry, limit)
	if err != nil {
		return err
	}
	enc, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin history tx")
	}
	rollback := func(cause error) error {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			zap.L().Warn("postgres: rollback failed", zap.Error(rbErr))
		}
		return cause
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO search_history (`+historyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserEmail, entry.SearchID, entry.Label,
		enc.criteria, enc.opportunities, entry.CreatedAt,
	)
	if err != nil {
		return rollback(eris.Wrap(err, "postgres: insert history"))
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM search_history WHERE user_email = $1 AND seq NOT IN (
			SELECT seq FROM search_history WHERE user_email = $1 ORDER BY seq DESC LIMIT $2
		)`,
		entry.UserEmail, limit,
	)
	if err != nil {
		return rollback(eris.Wrap(err, "postgres: evict history"))
	}
	if n := tag.RowsAffected(); n > 0 {
		logEviction(entry.UserEmail, n)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit history")
}

func (s *PostgresStore) ListHistory(ctx context.Context, email string) ([]model.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyColumns+` FROM search_history WHERE user_email = $1 ORDER BY seq DESC`,
		model.NormalizeEmail(email),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	out := []model.HistoryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list history iterate")
}

func (s *PostgresStore) GetHistory(ctx context.Context, id string) (*model.HistoryEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM search_history WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: history %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get history %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ClearHistory(ctx context.Context, email string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM search_history WHERE user_email = $1`, model.NormalizeEmail(email),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear history")
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PostgresStore)(nil)
