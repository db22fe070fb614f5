package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidscout/internal/render"
)

var prefsEmail string

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect saved search preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the preferences saved by your last search",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := requireEmail(prefsEmail)
		if err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := env.Store.LoadPreferences(cmd.Context(), email)
		if err != nil {
			return eris.Wrap(err, "load preferences")
		}
		if req == nil {
			fmt.Printf("No saved preferences for %s.\n", email)
			return nil
		}
		return render.JSON(os.Stdout, req)
	},
}

func init() {
	prefsShowCmd.Flags().StringVar(&prefsEmail, "email", "", "your email address")
	prefsCmd.AddCommand(prefsShowCmd)
	rootCmd.AddCommand(prefsCmd)
}
