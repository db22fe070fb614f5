package render

import (
	"fmt"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/search"
)

// Result messages shown above the opportunities.
const (
	MsgNoData    = "Search completed successfully! Matched opportunities will appear in your results sheet."
	MsgNoResults = "Search executed successfully! Results are being processed by the webhook."
)

// Message summarizes a search outcome for the user. An opportunity array,
// even an empty one, is reported by count; otherwise a webhook message is
// shown as is.
func Message(s search.Snapshot) string {
	switch {
	case s.Found:
		if s.Total > s.Count {
			return fmt.Sprintf("Found %d matching opportunities! (%d returned before filtering)", s.Count, s.Total)
		}
		return fmt.Sprintf("Found %d matching opportunities!", s.Count)
	case s.Message != "":
		return s.Message
	case s.Format == fetcher.FormatEmpty:
		return MsgNoData
	default:
		return MsgNoResults
	}
}
