package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/filter"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/pkg/webhook"
)

const revealConcurrency = 4

// Revealer fetches the fields a listing left out for one opportunity.
// webhook.Client satisfies it.
type Revealer interface {
	Reveal(ctx context.Context, req model.RevealRequest, opts ...webhook.CallOption) (model.Opportunity, error)
}

// Session is the result of one search: the criteria it ran with and the
// opportunities that survived filtering. Renderers and the reveal step read
// from it instead of from shared state.
type Session struct {
	ID        string
	UserEmail string
	Label     string
	HistoryID string
	Criteria  model.SearchCriteria
	Found     bool
	Message   string
	Format    fetcher.Format
	Stats     filter.Stats
	CreatedAt time.Time

	schema model.Schema
	mu     sync.RWMutex
	ops    []model.Opportunity
}

// Snapshot is a point-in-time copy of a session, safe to serialize. Schema
// is the key mapping the session filtered with and is not serialized.
type Snapshot struct {
	SearchID      string               `json:"search_id"`
	HistoryID     string               `json:"history_id,omitempty"`
	Label         string               `json:"label"`
	Count         int                  `json:"count"`
	Total         int                  `json:"total"`
	Found         bool                 `json:"found"`
	Message       string               `json:"message,omitempty"`
	Format        fetcher.Format       `json:"format"`
	Criteria      model.SearchCriteria `json:"criteria"`
	Opportunities []model.Opportunity  `json:"opportunities"`
	CreatedAt     time.Time            `json:"created_at"`
	Schema        model.Schema         `json:"-"`
}

// EntrySnapshot presents a saved history entry the way a live search is
// rendered.
func EntrySnapshot(e model.HistoryEntry) Snapshot {
	ops := e.Opportunities
	if ops == nil {
		ops = []model.Opportunity{}
	}
	return Snapshot{
		SearchID:      e.SearchID,
		HistoryID:     e.ID,
		Label:         e.Label,
		Count:         len(ops),
		Total:         len(ops),
		Found:         true,
		Criteria:      e.Criteria,
		Opportunities: ops,
		CreatedAt:     e.CreatedAt,
	}
}

// NewSession wraps already-filtered opportunities.
func NewSession(id string, c model.SearchCriteria, ops []model.Opportunity, schema model.Schema) *Session {
	if ops == nil {
		ops = []model.Opportunity{}
	}
	return &Session{
		ID:        id,
		Criteria:  c,
		CreatedAt: time.Now().UTC(),
		schema:    schema.Complete(),
		ops:       ops,
	}
}

// Len returns the number of opportunities.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ops)
}

// Opportunities returns a copy of the current opportunities.
func (s *Session) Opportunities() []model.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Opportunity, len(s.ops))
	for i, op := range s.ops {
		out[i] = op.Clone()
	}
	return out
}

// Snapshot copies the session for serialization.
func (s *Session) Snapshot() Snapshot {
	ops := s.Opportunities()
	return Snapshot{
		SearchID:      s.ID,
		HistoryID:     s.HistoryID,
		Label:         s.Label,
		Count:         len(ops),
		Total:         s.Stats.Total,
		Found:         s.Found,
		Message:       s.Message,
		Format:        s.Format,
		Criteria:      s.Criteria,
		Opportunities: ops,
		CreatedAt:     s.CreatedAt,
		Schema:        s.schema,
	}
}

// NeedsReveal reports whether the opportunity at index is missing its award
// amount or place-of-performance zip.
func (s *Session) NeedsReveal(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.ops) {
		return false
	}
	return s.missing(s.ops[index])
}

func (s *Session) missing(op model.Opportunity) bool {
	_, hasAmount := op.Lookup(s.schema.AwardAmount...)
	_, hasZip := op.Lookup(s.schema.Zip...)
	return !hasAmount || !hasZip
}

// Reveal asks r for the award amount and zip of the opportunity at index
// and fills whichever of them the record lacks. Known values are never
// overwritten. The updated record is returned.
func (s *Session) Reveal(ctx context.Context, index int, r Revealer, opts ...webhook.CallOption) (model.Opportunity, error) {
	s.mu.RLock()
	if index < 0 || index >= len(s.ops) {
		n := len(s.ops)
		s.mu.RUnlock()
		return nil, eris.Errorf("search: opportunity %d out of range [0,%d)", index, n)
	}
	op := s.ops[index].Clone()
	s.mu.RUnlock()

	if !s.missing(op) {
		return op, nil
	}

	sol, _ := op.TextOf(s.schema.SolicitationNumber...)
	title, _ := op.TextOf(s.schema.Title...)
	extra, err := r.Reveal(ctx, model.RevealRequest{
		SearchID:           s.ID,
		UserEmail:          s.UserEmail,
		SolicitationNumber: sol,
		Title:              title,
	}, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "search: reveal opportunity %d", index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.ops[index].Clone()
	filled := fillMissing(cur, extra, s.schema.AwardAmount)
	filled = fillMissing(cur, extra, s.schema.Zip) || filled
	if filled {
		s.ops[index] = cur
	}
	return cur.Clone(), nil
}

// fillMissing copies the first known value for keys from src into dst when
// dst has none. The value is stored under the key dst already uses, or the
// first key otherwise.
func fillMissing(dst, src model.Opportunity, keys []string) bool {
	if _, ok := dst.Lookup(keys...); ok {
		return false
	}
	srcKey, ok := src.Lookup(keys...)
	if !ok {
		return false
	}
	dstKey := keys[0]
	for _, k := range keys {
		if _, present := dst[k]; present {
			dstKey = k
			break
		}
	}
	dst[dstKey] = src[srcKey]
	return true
}

// RevealAll reveals every opportunity that needs it, a few at a time. An
// opportunity the webhook has nothing for is skipped. It returns how many
// records were revealed.
func (s *Session) RevealAll(ctx context.Context, r Revealer, opts ...webhook.CallOption) (int, error) {
	var (
		mu sync.Mutex
		n  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(revealConcurrency)

	for i := range s.Len() {
		if !s.NeedsReveal(i) {
			continue
		}
		g.Go(func() error {
			_, err := s.Reveal(gctx, i, r, opts...)
			if errors.Is(err, webhook.ErrNotFound) {
				zap.L().Debug("search: nothing to reveal", zap.String("search_id", s.ID), zap.Int("index", i))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			n++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return n, eris.Wrap(err, "search: reveal all")
	}
	return n, nil
}
