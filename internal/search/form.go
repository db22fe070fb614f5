// Package search turns a filled-in search form into a webhook call, filters
// what comes back and records the outcome in the user's history.
package search

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/bidscout/internal/config"
	"github.com/sells-group/bidscout/internal/model"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipRe   = regexp.MustCompile(`^\d{5}$`)
)

// ValidationError reports a form field the user must correct.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Form holds everything the user can set before running a search.
type Form struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
	UserEmail  string `json:"user_email" yaml:"user_email"`
	UserName   string `json:"user_name" yaml:"user_name"`

	CompanyZip string   `json:"company_zip" yaml:"company_zip"`
	SetAsides  []string `json:"set_asides" yaml:"set_asides"`
	NAICS      string   `json:"naics_filter" yaml:"naics_filter"`
	PSC        string   `json:"psc_filter" yaml:"psc_filter"`
	Keywords   string   `json:"keywords" yaml:"keywords"`

	MaxDistance    int `json:"max_distance" yaml:"max_distance"`
	MinValue       int `json:"min_value" yaml:"min_value"`
	BidComfortDays int `json:"bid_comfort_days" yaml:"bid_comfort_days"`
	MinDays        int `json:"min_days" yaml:"min_days"`

	IncludeAwarded  bool `json:"include_awarded" yaml:"include_awarded"`
	RequireLocation bool `json:"require_location" yaml:"require_location"`

	SpecialRequest string         `json:"special_request" yaml:"special_request"`
	Rankings       model.Rankings `json:"rankings,omitempty" yaml:"rankings"`
}

// Defaults returns the built-in form defaults.
func Defaults() config.SearchConfig {
	return config.SearchConfig{
		CompanyZip:     "92019",
		SetAsides:      []string{"NONE", "SBA"},
		NAICS:          "238220",
		MaxDistance:    200,
		MinValue:       50000,
		BidComfortDays: 14,
		MinDays:        7,
	}
}

// NewForm returns a form holding the configured defaults.
func NewForm(d config.SearchConfig) Form {
	var f Form
	f.Reset(d)
	return f
}

// Reset restores every search setting to its default. The webhook URL and
// the user's identity are kept.
func (f *Form) Reset(d config.SearchConfig) {
	f.CompanyZip = d.CompanyZip
	f.SetAsides = append([]string(nil), d.SetAsides...)
	f.NAICS = d.NAICS
	f.PSC = d.PSC
	f.Keywords = ""
	f.MaxDistance = d.MaxDistance
	f.MinValue = d.MinValue
	f.BidComfortDays = d.BidComfortDays
	f.MinDays = d.MinDays
	f.IncludeAwarded = d.IncludeAwarded
	f.RequireLocation = d.RequireLocation
	f.SpecialRequest = ""
	f.Rankings = model.DefaultRankings()
}

// Validate checks the fields a search cannot run without. The webhook URL
// may be empty when one is configured; if given it must be http(s).
func (f Form) Validate() error {
	if email := strings.TrimSpace(f.UserEmail); email == "" || !emailRe.MatchString(email) {
		return &ValidationError{Field: "user_email", Message: "Please enter a valid email address"}
	}
	if !zipRe.MatchString(strings.TrimSpace(f.CompanyZip)) {
		return &ValidationError{Field: "company_zip", Message: "Please enter a valid 5-digit ZIP code"}
	}
	if len(model.SplitList(f.NAICS)) == 0 {
		return &ValidationError{Field: "naics_filter", Message: "Please enter at least one NAICS code"}
	}
	if u := strings.TrimSpace(f.WebhookURL); u != "" && !strings.HasPrefix(u, "http") {
		return &ValidationError{Field: "webhook_url", Message: "Please enter a valid webhook URL"}
	}
	return nil
}

// Request builds the webhook payload for a search started at now.
func (f Form) Request(now time.Time) model.SearchRequest {
	email := strings.TrimSpace(f.UserEmail)
	name := strings.TrimSpace(f.UserName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	req := model.SearchRequest{
		SearchID:            NewSearchID(now),
		UserEmail:           email,
		UserName:            name,
		CompanyZip:          strings.TrimSpace(f.CompanyZip),
		NAICSFilter:         strings.Join(model.SplitList(f.NAICS), ","),
		PSCFilter:           strings.Join(model.SplitList(f.PSC), ","),
		AcceptableSetAsides: strings.Join(model.SplitList(strings.Join(f.SetAsides, ",")), ","),
		Keywords:            strings.Join(model.SplitList(f.Keywords), ","),
		MaxDistance:         f.MaxDistance,
		MinValue:            f.MinValue,
		BidComfortDays:      f.BidComfortDays,
		MinDays:             f.MinDays,
		IncludeAwarded:      f.IncludeAwarded,
		RequireLocation:     f.RequireLocation,
		SpecialRequest:      strings.TrimSpace(f.SpecialRequest),
		SearchTimestamp:     now.UTC(),
	}

	rk := f.Rankings
	if _, err := model.FromRanks(ranksOf(rk)); err != nil {
		rk = model.DefaultRankings()
	}
	req.SetRankings(rk)
	return req
}

// Criteria returns the local filter criteria the form describes.
func (f Form) Criteria() model.SearchCriteria {
	return f.Request(time.Time{}).Criteria()
}

// Load copies a previously saved search into the form. Zero values in the
// saved zip, NAICS, distance and comfort fields leave the form unchanged;
// the remaining fields are always copied.
func (f *Form) Load(req model.SearchRequest) {
	if req.CompanyZip != "" {
		f.CompanyZip = req.CompanyZip
	}
	if req.NAICSFilter != "" {
		f.NAICS = req.NAICSFilter
	}
	f.PSC = req.PSCFilter
	if req.MaxDistance > 0 {
		f.MaxDistance = req.MaxDistance
	}
	f.MinValue = req.MinValue
	if req.BidComfortDays > 0 {
		f.BidComfortDays = req.BidComfortDays
	}
	f.MinDays = req.MinDays
	if req.AcceptableSetAsides != "" {
		f.SetAsides = model.SplitList(req.AcceptableSetAsides)
	}
	f.Keywords = req.Keywords
	f.IncludeAwarded = req.IncludeAwarded
	f.RequireLocation = req.RequireLocation
	f.SpecialRequest = req.SpecialRequest
	f.Rankings = req.Rankings()
}

func ranksOf(rk model.Rankings) map[model.Priority]int {
	out := make(map[model.Priority]int, len(rk))
	for i, p := range rk {
		out[p] = i + 1
	}
	return out
}

// NewSearchID returns SEARCH_<unix millis>_<9 base36 chars>.
func NewSearchID(now time.Time) string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[8:]), 36)
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return fmt.Sprintf("SEARCH_%d_%s", now.UnixMilli(), suffix[len(suffix)-9:])
}
