package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/bidscout/internal/fetcher"
	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/search"
)

var (
	filterCriteriaFile string
	filterKeywords     string
	filterNAICS        string
	filterPSC          string
	filterSetAsides    []string
	filterMinValue     float64
	filterMinDays      int
	filterSheet        string
	filterOut          outputFlags
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Filter a saved export (CSV, JSON, XLSX or ZIP)",
	Long:  "Applies search criteria to a previously saved webhook response or export file without contacting the webhook. Nothing is saved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := filterCriteria(cmd)
		if err != nil {
			return err
		}

		svc := search.NewService(nil, nil)
		sess, err := svc.RunFile(cmd.Context(), args[0], c, fetcher.FileOptions{Sheet: filterSheet})
		if err != nil {
			return err
		}
		return writeSession(filterOut, sess.Snapshot())
	},
}

func init() {
	fs := filterCmd.Flags()
	fs.StringVar(&filterCriteriaFile, "criteria", "", "YAML file with filter criteria (flags override it)")
	fs.StringVar(&filterKeywords, "keywords", "", "comma-separated keywords")
	fs.StringVar(&filterNAICS, "naics", "", "comma-separated NAICS codes")
	fs.StringVar(&filterPSC, "psc", "", "comma-separated PSC codes")
	fs.StringSliceVar(&filterSetAsides, "set-asides", nil, "accepted set-aside codes")
	fs.Float64Var(&filterMinValue, "min-value", 0, "minimum award amount")
	fs.IntVar(&filterMinDays, "min-days", 0, "minimum days until the response deadline")
	fs.StringVar(&filterSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	filterOut.bind(filterCmd)
	rootCmd.AddCommand(filterCmd)
}

func filterCriteria(cmd *cobra.Command) (model.SearchCriteria, error) {
	var c model.SearchCriteria
	if filterCriteriaFile != "" {
		loaded, err := search.LoadCriteriaFile(filterCriteriaFile)
		if err != nil {
			return model.SearchCriteria{}, err
		}
		c = loaded
	}

	changed := cmd.Flags().Changed
	if changed("keywords") {
		c.Keywords = model.SplitList(filterKeywords)
	}
	if changed("naics") {
		c.NAICSCodes = model.SplitList(filterNAICS)
	}
	if changed("psc") {
		c.PSCCodes = model.SplitList(filterPSC)
	}
	if changed("set-asides") {
		c.SetAsides = filterSetAsides
	}
	if changed("min-value") {
		c.MinValue = filterMinValue
	}
	if changed("min-days") {
		c.MinDaysUntilDeadline = filterMinDays
	}
	return c.Normalize(), nil
}
