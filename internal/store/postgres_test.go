package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidscout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var historyCols = []string{"id", "user_email", "search_id", "label", "criteria", "opportunities", "created_at"}

func TestPostgresStore_SavePreferences_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "preferences" .* ON CONFLICT \("email"\) DO UPDATE SET`).
		WithArgs("buyer@example.com", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SavePreferences(context.Background(), " Buyer@Example.com", model.SearchRequest{CompanyZip: "92019"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadPreferences(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload, err := json.Marshal(model.SearchRequest{CompanyZip: "92019", NAICSFilter: "238220"})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT payload FROM preferences WHERE email = \$1`).
		WithArgs("buyer@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.LoadPreferences(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "238220", got.NAICSFilter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadPreferences_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM preferences`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.LoadPreferences(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddHistory_InsertAndEvict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO search_history`).
		WithArgs(pgxmock.AnyArg(), "a@b.co", "SEARCH_x", "x", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM search_history WHERE user_email = \$1 AND seq NOT IN`).
		WithArgs("a@b.co", 10).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	e := entry("A@B.co", "x")
	require.NoError(t, s.AddHistory(context.Background(), e, 10))
	assert.NotEmpty(t, e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddHistory_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO search_history`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.AddHistory(context.Background(), entry("a@b.co", "x"), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, user_email, search_id, label, criteria, opportunities, created_at FROM search_history WHERE user_email = \$1 ORDER BY seq DESC`).
		WithArgs("a@b.co").
		WillReturnRows(pgxmock.NewRows(historyCols).
			AddRow("id-2", "a@b.co", "S2", "newer", []byte(`{"keywords":["roof"]}`), []byte(`[{"title":"B"}]`), now).
			AddRow("id-1", "a@b.co", "S1", "older", []byte(`{}`), []byte(`[]`), now.Add(-time.Hour)))

	list, err := s.ListHistory(context.Background(), "a@b.co")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Label)
	assert.Equal(t, []string{"roof"}, list[0].Criteria.Keywords)
	assert.Equal(t, "B", list[0].Opportunities[0]["title"])
	assert.NotNil(t, list[1].Opportunities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHistory_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM search_history WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetHistory(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM search_history WHERE user_email = \$1`).
		WithArgs("a@b.co").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.ClearHistory(context.Background(), "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateAndPing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS preferences`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`SELECT 1`).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
