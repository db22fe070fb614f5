// Package filter applies a user's search preferences to opportunity records.
//
// Every predicate leans toward inclusion: a record whose relevant field is
// missing or unparseable passes, and an unset criterion never rejects. The
// one exception is the set-aside check, which treats a missing set-aside as
// "NONE" and compares that against the accepted list.
package filter

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sells-group/bidscout/internal/model"
)

// Predicate names one check in the chain.
type Predicate string

// Predicates in evaluation order.
const (
	PredicateNone     Predicate = ""
	PredicateDeadline Predicate = "deadline"
	PredicateKeyword  Predicate = "keyword"
	PredicateNAICS    Predicate = "naics"
	PredicatePSC      Predicate = "psc"
	PredicateSetAside Predicate = "set_aside"
	PredicateMinValue Predicate = "min_value"
)

// Order lists the predicates in evaluation order.
var Order = []Predicate{
	PredicateDeadline,
	PredicateKeyword,
	PredicateNAICS,
	PredicatePSC,
	PredicateSetAside,
	PredicateMinValue,
}

// Stats counts what a pass over a slice kept and rejected.
type Stats struct {
	Total    int
	Kept     int
	Rejected map[Predicate]int
}

// String renders the rejection counts in evaluation order.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kept %d of %d", s.Kept, s.Total)
	for _, p := range Order {
		if n := s.Rejected[p]; n > 0 {
			fmt.Fprintf(&b, ", %s=%d", p, n)
		}
	}
	return b.String()
}

// Option configures a Filter.
type Option func(*Filter)

// WithNow overrides the clock used by the deadline check.
func WithNow(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// WithSchema sets which upstream keys are read for each field.
func WithSchema(s model.Schema) Option {
	return func(f *Filter) { f.schema = s.Complete() }
}

// Filter is safe for concurrent use.
type Filter struct {
	now    func() time.Time
	schema model.Schema
}

// New creates a Filter using the wall clock and the default schema.
func New(opts ...Option) *Filter {
	f := &Filter{now: time.Now, schema: model.DefaultSchema()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply returns the records that pass every predicate, in input order.
func (f *Filter) Apply(ops []model.Opportunity, c model.SearchCriteria) []model.Opportunity {
	out, _ := f.ApplyStats(ops, c)
	return out
}

// ApplyStats is Apply that also reports per-predicate rejection counts.
// The result is never nil.
func (f *Filter) ApplyStats(ops []model.Opportunity, c model.SearchCriteria) ([]model.Opportunity, Stats) {
	out := make([]model.Opportunity, 0, len(ops))
	stats := Stats{Total: len(ops), Rejected: make(map[Predicate]int)}
	if c.Normalize().IsZero() {
		out = append(out, ops...)
		stats.Kept = len(out)
		return out, stats
	}

	ev := f.evaluator(c)
	for _, op := range ops {
		if failed := ev.check(op); failed != PredicateNone {
			stats.Rejected[failed]++
			continue
		}
		out = append(out, op)
	}
	stats.Kept = len(out)
	return out, stats
}

// Evaluate checks a single record. When it fails, the first failing
// predicate is returned.
func (f *Filter) Evaluate(op model.Opportunity, c model.SearchCriteria) (bool, Predicate) {
	failed := f.evaluator(c).check(op)
	return failed == PredicateNone, failed
}

// evaluator holds per-call state. cases.Caser is not safe for concurrent use,
// so each call gets its own.
type evaluator struct {
	schema   model.Schema
	cutoff   time.Time
	minDays  int
	minValue float64
	fold     cases.Caser
	keywords []string
	naics    []string
	psc      []string
	setAside []string
}

func (f *Filter) evaluator(c model.SearchCriteria) *evaluator {
	c = c.Normalize()
	ev := &evaluator{
		schema:   f.schema,
		minDays:  c.MinDaysUntilDeadline,
		minValue: c.MinValue,
		fold:     cases.Fold(),
		naics:    c.NAICSCodes,
		psc:      c.PSCCodes,
		setAside: c.SetAsides,
	}
	if c.MinDaysUntilDeadline > 0 {
		ev.cutoff = f.now().Add(time.Duration(c.MinDaysUntilDeadline) * 24 * time.Hour)
	}
	for _, kw := range c.Keywords {
		ev.keywords = append(ev.keywords, ev.fold.String(kw))
	}
	return ev
}

func (ev *evaluator) check(op model.Opportunity) Predicate {
	switch {
	case !ev.deadline(op):
		return PredicateDeadline
	case !ev.keyword(op):
		return PredicateKeyword
	case !ev.naicsMatch(op):
		return PredicateNAICS
	case !ev.pscMatch(op):
		return PredicatePSC
	case !ev.setAsideMatch(op):
		return PredicateSetAside
	case !ev.value(op):
		return PredicateMinValue
	}
	return PredicateNone
}

func (ev *evaluator) deadline(op model.Opportunity) bool {
	if ev.minDays <= 0 {
		return true
	}
	raw, ok := op.TextOf(ev.schema.ResponseDeadline...)
	if !ok {
		return true
	}
	due, ok := ParseDeadline(raw)
	if !ok {
		return true
	}
	return !due.Before(ev.cutoff)
}

// keyword searches title and description. A missing description counts as
// empty text, so a record cannot pass on a field it never had.
func (ev *evaluator) keyword(op model.Opportunity) bool {
	if len(ev.keywords) == 0 {
		return true
	}
	title, _ := op.TextOf(ev.schema.Title...)
	desc, _ := op.TextOf(ev.schema.Description...)
	haystack := ev.fold.String(title + " " + desc)
	for _, kw := range ev.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (ev *evaluator) naicsMatch(op model.Opportunity) bool {
	if len(ev.naics) == 0 {
		return true
	}
	codes, ok := multiValue(op, ev.schema.NAICS)
	if !ok {
		return true
	}
	for _, code := range codes {
		if containsFold(ev.naics, code) {
			return true
		}
	}
	return false
}

func (ev *evaluator) pscMatch(op model.Opportunity) bool {
	if len(ev.psc) == 0 {
		return true
	}
	code, ok := op.TextOf(ev.schema.PSC...)
	if !ok {
		return true
	}
	return containsFold(ev.psc, code)
}

func (ev *evaluator) setAsideMatch(op model.Opportunity) bool {
	if len(ev.setAside) == 0 {
		return true
	}
	code, ok := op.TextOf(ev.schema.SetAside...)
	if !ok {
		code = model.DefaultSetAside
	}
	return containsFold(ev.setAside, code)
}

func (ev *evaluator) value(op model.Opportunity) bool {
	if ev.minValue <= 0 {
		return true
	}
	amount, ok := op.NumberOf(ev.schema.AwardAmount...)
	if !ok {
		return true
	}
	return amount >= ev.minValue
}

// multiValue reads a field that may hold a comma-separated string or a JSON
// array of codes. ok is false when no code is present.
func multiValue(op model.Opportunity, keys []string) ([]string, bool) {
	key, ok := op.Lookup(keys...)
	if !ok {
		return nil, false
	}
	var codes []string
	switch v := op[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := (model.Opportunity{"v": item}).Text("v"); ok {
				codes = append(codes, model.SplitList(s)...)
			}
		}
	case []string:
		for _, s := range v {
			codes = append(codes, model.SplitList(s)...)
		}
	default:
		s, _ := op.Text(key)
		codes = model.SplitList(s)
	}
	return codes, len(codes) > 0
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
