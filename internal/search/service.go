package search

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/filter"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/store"
	"github.com/sells-group/bidscout/pkg/webhook"
)

// Service runs searches end to end.
type Service struct {
	client       webhook.Client
	store        store.Store
	filter       *filter.Filter
	schema       model.Schema
	historyLimit int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHistoryLimit sets how many searches are kept per user.
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.historyLimit = n }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSchema sets the field names used to read opportunities.
func WithSchema(schema model.Schema) Option {
	return func(s *Service) { s.schema = schema.Complete() }
}

// NewService creates a Service. st may be nil, in which case nothing is
// persisted.
func NewService(client webhook.Client, st store.Store, opts ...Option) *Service {
	s := &Service{
		client:       client,
		store:        st,
		schema:       model.DefaultSchema(),
		historyLimit: store.DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.filter = filter.New(filter.WithNow(s.now), filter.WithSchema(s.schema))
	return s
}

// Run validates the form, posts it to the search webhook and filters the
// response locally.
func (s *Service) Run(ctx context.Context, f Form) (*Session, error) {
	return s.run(ctx, f, func(ctx context.Context, req model.SearchRequest, opts []webhook.CallOption) (*webhook.Result, error) {
		return s.client.Search(ctx, req, opts...)
	})
}

// RunDataset is the CSV variant of Run: it fetches the whole unfiltered
// dataset and applies every criterion locally.
func (s *Service) RunDataset(ctx context.Context, f Form) (*Session, error) {
	return s.run(ctx, f, func(ctx context.Context, _ model.SearchRequest, opts []webhook.CallOption) (*webhook.Result, error) {
		return s.client.Dataset(ctx, opts...)
	})
}

type callFunc func(ctx context.Context, req model.SearchRequest, opts []webhook.CallOption) (*webhook.Result, error)

func (s *Service) run(ctx context.Context, f Form, call callFunc) (*Session, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	req := f.Request(now)
	log := zap.L().With(zap.String("search_id", req.SearchID))

	if s.store != nil {
		if err := s.store.SavePreferences(ctx, req.UserEmail, req); err != nil {
			log.Warn("search: save preferences failed", zap.Error(err))
		}
	}

	var opts []webhook.CallOption
	if f.WebhookURL != "" {
		opts = append(opts, webhook.WithURL(f.WebhookURL))
	}

	log.Info("search: started", zap.Strings("naics", model.SplitList(req.NAICSFilter)))
	res, err := call(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	sess := s.finish(req.SearchID, req.Criteria(), res.Decoded, now)
	sess.UserEmail = model.NormalizeEmail(req.UserEmail)
	s.record(ctx, sess)
	return sess, nil
}

// RunFile filters a local export (CSV, JSON, XLSX or a ZIP holding one).
// Nothing is persisted.
func (s *Service) RunFile(ctx context.Context, path string, c model.SearchCriteria, opts fetcher.FileOptions) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops, err := fetcher.LoadFile(path, opts)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := s.finish(NewSearchID(now), c.Normalize(), fetcher.Decoded{
		Opportunities: ops,
		Found:         true,
		Format:        fetcher.FormatCSV,
	}, now)
	return sess, nil
}

func (s *Service) finish(id string, c model.SearchCriteria, d fetcher.Decoded, now time.Time) *Session {
	kept, stats := s.filter.ApplyStats(d.Opportunities, c)
	zap.L().Debug("search: filter applied",
		zap.String("search_id", id),
		zap.Stringer("stats", stats),
	)

	sess := NewSession(id, c, kept, s.schema)
	sess.Label = Label(c, now)
	sess.Found = d.Found
	sess.Message = d.Message
	sess.Format = d.Format
	sess.Stats = stats
	sess.CreatedAt = now.UTC()
	return sess
}

func (s *Service) record(ctx context.Context, sess *Session) {
	if s.store == nil || sess.UserEmail == "" {
		return
	}
	entry := &model.HistoryEntry{
		UserEmail:     sess.UserEmail,
		SearchID:      sess.ID,
		Label:         sess.Label,
		Criteria:      sess.Criteria,
		Opportunities: sess.Opportunities(),
		CreatedAt:     sess.CreatedAt,
	}
	if err := s.store.AddHistory(ctx, entry, s.historyLimit); err != nil {
		zap.L().Warn("search: save history failed", zap.String("search_id", sess.ID), zap.Error(err))
		return
	}
	sess.HistoryID = entry.ID
}

// Label names a search for the history list: the first keyword, else the
// first NAICS code, followed by when it ran.
func Label(c model.SearchCriteria, ts time.Time) string {
	subject := "All opportunities"
	switch {
	case len(c.Keywords) > 0:
		subject = c.Keywords[0]
	case len(c.NAICSCodes) > 0:
		subject = c.NAICSCodes[0]
	}
	return fmt.Sprintf("%s (%s)", subject, ts.Format("2006-01-02 15:04"))
}

// LoadCriteriaFile reads filter criteria from a YAML file.
func LoadCriteriaFile(path string) (model.SearchCriteria, error) {
	var c model.SearchCriteria
	if err := readYAML(path, &c); err != nil {
		return model.SearchCriteria{}, err
	}
	return c.Normalize(), nil
}

// LoadFormFile reads a search form from a YAML file on top of d.
func LoadFormFile(path string, d Form) (Form, error) {
	f := d
	if err := readYAML(path, &f); err != nil {
		return Form{}, err
	}
	return f, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "search: read %s", path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "search: parse %s", path)
	}
	return nil
}
