package model

import "strings"

// SearchCriteria holds the user's filter preferences for one search.
type SearchCriteria struct {
	Keywords             []string `json:"keywords,omitempty" yaml:"keywords" mapstructure:"keywords"`
	NAICSCodes           []string `json:"naics_codes,omitempty" yaml:"naics_codes" mapstructure:"naics_codes"`
	PSCCodes             []string `json:"psc_codes,omitempty" yaml:"psc_codes" mapstructure:"psc_codes"`
	SetAsides            []string `json:"set_asides,omitempty" yaml:"set_asides" mapstructure:"set_asides"`
	MinValue             float64  `json:"min_value" yaml:"min_value" mapstructure:"min_value"`
	MinDaysUntilDeadline int      `json:"min_days_until_deadline" yaml:"min_days_until_deadline" mapstructure:"min_days_until_deadline"`
	MaxDistance          int      `json:"max_distance,omitempty" yaml:"max_distance" mapstructure:"max_distance"`             // forwarded only
	BidComfortDays       int      `json:"bid_comfort_days,omitempty" yaml:"bid_comfort_days" mapstructure:"bid_comfort_days"` // display only
	SpecialRequest       string   `json:"special_request,omitempty" yaml:"special_request" mapstructure:"special_request"`    // forwarded only
}

// DefaultSetAside is what a record without a set-aside type is compared as.
const DefaultSetAside = "NONE"

// Normalize trims list entries, drops blanks and upper-cases set-aside codes.
func (c SearchCriteria) Normalize() SearchCriteria {
	c.Keywords = cleanList(c.Keywords, false)
	c.NAICSCodes = cleanList(c.NAICSCodes, false)
	c.PSCCodes = cleanList(c.PSCCodes, false)
	c.SetAsides = cleanList(c.SetAsides, true)
	c.SpecialRequest = strings.TrimSpace(c.SpecialRequest)
	return c
}

// IsZero reports whether no criterion would reject anything.
func (c SearchCriteria) IsZero() bool {
	return len(c.Keywords) == 0 && len(c.NAICSCodes) == 0 && len(c.PSCCodes) == 0 &&
		len(c.SetAsides) == 0 && c.MinValue <= 0 && c.MinDaysUntilDeadline <= 0
}

// SplitList splits a comma-separated input into trimmed, non-empty entries.
func SplitList(s string) []string {
	return cleanList(strings.Split(s, ","), false)
}

func cleanList(in []string, upper bool) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if upper {
			s = strings.ToUpper(s)
		}
		out = append(out, s)
	}
	return out
}
