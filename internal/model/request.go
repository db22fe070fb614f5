package model

import (
	"strings"
	"time"
)

// SearchRequest is the JSON payload posted to the search webhook. It is also
// what gets saved per user for "load previous search".
type SearchRequest struct {
	SearchID  string `json:"search_id"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`

	CompanyZip          string `json:"company_zip"`
	NAICSFilter         string `json:"naics_filter"`
	PSCFilter           string `json:"psc_filter"`
	AcceptableSetAsides string `json:"acceptable_set_asides"`
	Keywords            string `json:"keywords,omitempty"`

	MaxDistance    int `json:"max_distance"`
	MinValue       int `json:"min_value"`
	BidComfortDays int `json:"bid_comfort_days"`
	MinDays        int `json:"min_days"`

	LocationRank    int `json:"location_rank"`
	ValueRank       int `json:"value_rank"`
	FeasibilityRank int `json:"feasibility_rank"`
	EffortRank      int `json:"effort_rank"`
	SpecialRank     int `json:"special_rank"`

	IncludeAwarded  bool `json:"include_awarded"`
	RequireLocation bool `json:"require_location"`

	SpecialRequest  string    `json:"special_request"`
	SearchTimestamp time.Time `json:"search_timestamp"`
}

// Criteria recovers the local filter criteria carried by the payload.
func (r SearchRequest) Criteria() SearchCriteria {
	return SearchCriteria{
		Keywords:             SplitList(r.Keywords),
		NAICSCodes:           SplitList(r.NAICSFilter),
		PSCCodes:             SplitList(r.PSCFilter),
		SetAsides:            SplitList(r.AcceptableSetAsides),
		MinValue:             float64(r.MinValue),
		MinDaysUntilDeadline: r.MinDays,
		MaxDistance:          r.MaxDistance,
		BidComfortDays:       r.BidComfortDays,
		SpecialRequest:       r.SpecialRequest,
	}.Normalize()
}

// Rankings rebuilds the priority ordering from the *_rank fields, falling
// back to the default order when the stored ranks are incomplete.
func (r SearchRequest) Rankings() Rankings {
	rk, err := FromRanks(map[Priority]int{
		PriorityValue:       r.ValueRank,
		PriorityFeasibility: r.FeasibilityRank,
		PriorityLocation:    r.LocationRank,
		PrioritySpecial:     r.SpecialRank,
		PriorityEffort:      r.EffortRank,
	})
	if err != nil {
		return DefaultRankings()
	}
	return rk
}

// SetRankings writes the *_rank fields from an ordering.
func (r *SearchRequest) SetRankings(rk Rankings) {
	r.ValueRank = rk.Rank(PriorityValue)
	r.FeasibilityRank = rk.Rank(PriorityFeasibility)
	r.LocationRank = rk.Rank(PriorityLocation)
	r.SpecialRank = rk.Rank(PrioritySpecial)
	r.EffortRank = rk.Rank(PriorityEffort)
}

// RevealRequest asks the reveal webhook for the fields a search result left
// out (award amount, place of performance zip).
type RevealRequest struct {
	SearchID           string `json:"search_id"`
	UserEmail          string `json:"user_email"`
	SolicitationNumber string `json:"solicitation_number"`
	Title              string `json:"title"`
}

// HistoryEntry is one saved search: its criteria and the filtered results.
type HistoryEntry struct {
	ID            string         `json:"id"`
	UserEmail     string         `json:"user_email"`
	SearchID      string         `json:"search_id"`
	Label         string         `json:"label"`
	Criteria      SearchCriteria `json:"criteria"`
	Opportunities []Opportunity  `json:"opportunities"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an address for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
