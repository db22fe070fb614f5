package search

import (
	"fmt"
	"math"
)

const previewBase = 89.0

// Impact is a rough, offline estimate of what a form will return. It is
// shown while the user adjusts settings and never consults the webhook.
type Impact struct {
	EstimatedOpportunities int `json:"estimated_opportunities"`
	WithinDistance         int `json:"within_distance"`
	ProcessingMinutes      int `json:"processing_minutes"`
}

// Preview estimates the impact of the form's settings.
func Preview(f Form) Impact {
	est := previewBase
	switch {
	case f.MinDays >= 14:
		est *= 0.3
	case f.MinDays >= 7:
		est *= 0.6
	case f.MinDays >= 3:
		est *= 0.8
	}
	est *= math.Min(float64(len(f.SetAsides))/2, 1.2)
	if f.RequireLocation {
		est *= 0.7
	}
	if f.IncludeAwarded {
		est *= 1.5
	}
	estimated := int(math.Round(est))

	within := float64(estimated)
	switch {
	case f.MaxDistance <= 100:
		within *= 0.05
	case f.MaxDistance <= 200:
		within *= 0.15
	case f.MaxDistance <= 500:
		within *= 0.40
	default:
		within *= 0.70
	}

	// about 30 opportunities a minute
	minutes := max(1, int(math.Ceil(float64(estimated)/30)))

	return Impact{
		EstimatedOpportunities: estimated,
		WithinDistance:         int(math.Round(within)),
		ProcessingMinutes:      minutes,
	}
}

func (i Impact) String() string {
	return fmt.Sprintf("~%d opportunities, ~%d within distance, ~%d min",
		i.EstimatedOpportunities, i.WithinDistance, i.ProcessingMinutes)
}
