package model

import "github.com/rotisserie/eris"

// Priority identifies one of the rankable scoring priorities.
type Priority string

const (
	PriorityValue       Priority = "value"
	PriorityFeasibility Priority = "feasibility"
	PriorityLocation    Priority = "location"
	PrioritySpecial     Priority = "special"
	PriorityEffort      Priority = "effort"
)

// PriorityInfo describes a priority for display.
type PriorityInfo struct {
	ID          Priority `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Priorities lists every rankable priority in default rank order.
var Priorities = []PriorityInfo{
	{ID: PriorityValue, Title: "Contract Value", Description: "Dollar amount of the contract"},
	{ID: PriorityFeasibility, Title: "Bid Feasibility", Description: "Time available to prepare bid"},
	{ID: PriorityLocation, Title: "Location Proximity", Description: "Distance from your company"},
	{ID: PrioritySpecial, Title: "Custom Rules Match", Description: "Fits your special requirements"},
	{ID: PriorityEffort, Title: "Effort/Complexity", Description: "Ease of bidding (fewer requirements)"},
}

// Rankings is an ordering of all priorities, most important first.
type Rankings []Priority

// DefaultRankings returns value, feasibility, location, special, effort.
func DefaultRankings() Rankings {
	r := make(Rankings, len(Priorities))
	for i, p := range Priorities {
		r[i] = p.ID
	}
	return r
}

// Rank returns the 1-based rank of p, or 0 if p is not ranked.
func (r Rankings) Rank(p Priority) int {
	for i, q := range r {
		if q == p {
			return i + 1
		}
	}
	return 0
}

// Move returns a copy with the item at position from (0-based) moved to
// position to, shifting the items in between. Ranks renumber from the new
// order.
func (r Rankings) Move(from, to int) (Rankings, error) {
	if from < 0 || from >= len(r) || to < 0 || to >= len(r) {
		return nil, eris.Errorf("rankings: move %d -> %d out of range [0,%d)", from, to, len(r))
	}
	out := make(Rankings, 0, len(r))
	item := r[from]
	for i, p := range r {
		if i != from {
			out = append(out, p)
		}
	}
	out = append(out[:to], append(Rankings{item}, out[to:]...)...)
	return out, nil
}

// FromRanks rebuilds an ordering from per-priority ranks (1 = most
// important). Every priority must appear exactly once with ranks 1..5.
func FromRanks(ranks map[Priority]int) (Rankings, error) {
	out := make(Rankings, len(Priorities))
	for _, p := range Priorities {
		rank, ok := ranks[p.ID]
		if !ok {
			return nil, eris.Errorf("rankings: missing rank for %s", p.ID)
		}
		if rank < 1 || rank > len(out) {
			return nil, eris.Errorf("rankings: rank %d for %s out of range", rank, p.ID)
		}
		if out[rank-1] != "" {
			return nil, eris.Errorf("rankings: rank %d assigned twice", rank)
		}
		out[rank-1] = p.ID
	}
	return out, nil
}
