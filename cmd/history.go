package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/render"
	"github.com/sells-group/bidscout/internal/search"
	"github.com/sells-group/bidscout/internal/store"
)

var (
	historyEmail string
	historyOut   outputFlags
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or clear your saved searches",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your saved searches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := requireEmail(historyEmail)
		if err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.ListHistory(cmd.Context(), email)
		if err != nil {
			return eris.Wrap(err, "list history")
		}
		if len(entries) == 0 {
			fmt.Println("No saved searches.")
			return nil
		}
		render.HistoryTable(os.Stdout, entries)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the results of a saved search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := requireEmail(historyEmail)
		if err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer env.Close()

		entry, err := env.Store.GetHistory(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) || (err == nil && entry.UserEmail != email) {
			return eris.Errorf("no saved search %s for %s", args[0], email)
		}
		if err != nil {
			return eris.Wrap(err, "get history")
		}
		return writeSession(historyOut, search.EntrySnapshot(*entry))
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all of your saved searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := requireEmail(historyEmail)
		if err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ClearHistory(cmd.Context(), email)
		if err != nil {
			return eris.Wrap(err, "clear history")
		}
		zap.L().Info("history cleared", zap.String("email", email), zap.Int("deleted", n))
		fmt.Printf("Deleted %d saved searches.\n", n)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyEmail, "email", "", "your email address")
	historyOut.bind(historyShowCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// requireEmail normalizes an --email flag value and rejects empty ones.
func requireEmail(email string) (string, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return "", eris.New("--email is required")
	}
	return email, nil
}
