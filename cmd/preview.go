package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/bidscout/internal/search"
)

var previewForm formFlags

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Estimate how many opportunities a search would return",
	Long:  "Prints a rough estimate of result count, results within distance and processing time for the given form. Nothing is sent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := previewForm.form(cmd)
		if err != nil {
			return err
		}
		fmt.Println(search.Preview(f))
		return nil
	},
}

func init() {
	previewForm.bind(previewCmd)
	rootCmd.AddCommand(previewCmd)
}
