// Package store persists per-user search preferences and a capped history
// of past searches.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/model"
)

// DefaultHistoryLimit is how many searches are kept per user.
const DefaultHistoryLimit = 10

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for preferences and history.
type Store interface {
	// Preferences ("load previous search")
	SavePreferences(ctx context.Context, email string, req model.SearchRequest) error
	// LoadPreferences returns nil, nil when the user has none saved.
	LoadPreferences(ctx context.Context, email string) (*model.SearchRequest, error)

	// History
	// AddHistory assigns entry an ID and creation time when unset, stores
	// it, and evicts the user's oldest entries beyond limit.
	AddHistory(ctx context.Context, entry *model.HistoryEntry, limit int) error
	// ListHistory returns the user's entries, newest first.
	ListHistory(ctx context.Context, email string) ([]model.HistoryEntry, error)
	GetHistory(ctx context.Context, id string) (*model.HistoryEntry, error)
	ClearHistory(ctx context.Context, email string) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// prepareEntry fills defaults and validates an entry before insert.
func prepareEntry(entry *model.HistoryEntry, limit int) (int, error) {
	if entry == nil {
		return 0, eris.New("store: nil history entry")
	}
	entry.UserEmail = model.NormalizeEmail(entry.UserEmail)
	if entry.UserEmail == "" {
		return 0, eris.New("store: history entry has no email")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Opportunities == nil {
		entry.Opportunities = []model.Opportunity{}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return limit, nil
}

type encodedEntry struct {
	criteria      []byte
	opportunities []byte
}

func encodeEntry(entry *model.HistoryEntry) (encodedEntry, error) {
	criteria, err := json.Marshal(entry.Criteria)
	if err != nil {
		return encodedEntry{}, eris.Wrap(err, "store: marshal criteria")
	}
	ops, err := json.Marshal(entry.Opportunities)
	if err != nil {
		return encodedEntry{}, eris.Wrap(err, "store: marshal opportunities")
	}
	return encodedEntry{criteria: criteria, opportunities: ops}, nil
}

func decodeEntry(entry *model.HistoryEntry, criteria, ops []byte) error {
	if err := json.Unmarshal(criteria, &entry.Criteria); err != nil {
		return eris.Wrap(err, "store: unmarshal criteria")
	}
	if err := json.Unmarshal(ops, &entry.Opportunities); err != nil {
		return eris.Wrap(err, "store: unmarshal opportunities")
	}
	if entry.Opportunities == nil {
		entry.Opportunities = []model.Opportunity{}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var criteria, ops []byte
	if err := row.Scan(&e.ID, &e.UserEmail, &e.SearchID, &e.Label, &criteria, &ops, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeEntry(&e, criteria, ops); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func logEviction(email string, n int64) {
	zap.L().Debug("store: evicted old history",
		zap.String("email", email),
		zap.Int64("evicted", n),
	)
}
