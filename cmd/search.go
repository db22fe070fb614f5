package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/render"
	"github.com/sells-group/bidscout/internal/search"
	"github.com/sells-group/bidscout/internal/store"
)

// searchRun selects which webhook a search command posts to.
type searchRun func(svc *search.Service) func(context.Context, search.Form) (*search.Session, error)

// searchOptions are the flags shared by search and dataset.
type searchOptions struct {
	form         formFlags
	out          outputFlags
	loadPrevious bool
	reveal       bool
}

func (o *searchOptions) bind(cmd *cobra.Command) {
	o.form.bind(cmd)
	o.out.bind(cmd)
	cmd.Flags().BoolVar(&o.loadPrevious, "load-previous", false, "start from the preferences saved by your last search")
	cmd.Flags().BoolVar(&o.reveal, "reveal", false, "fetch missing award amounts and zips for every result")
}

var (
	searchOpts  searchOptions
	datasetOpts searchOptions
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search opportunities through the search webhook",
	Long:  "Posts the search form to the search webhook, filters the returned opportunities locally, saves your preferences and records the search in your history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, "search", &searchOpts, func(svc *search.Service) func(context.Context, search.Form) (*search.Session, error) {
			return svc.Run
		})
	},
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Fetch the full dataset and filter it locally",
	Long:  "Fetches the unfiltered opportunity dataset (usually CSV) from the dataset webhook and applies every criterion of the search form locally.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, "dataset", &datasetOpts, func(svc *search.Service) func(context.Context, search.Form) (*search.Session, error) {
			return svc.RunDataset
		})
	},
}

func init() {
	searchOpts.bind(searchCmd)
	datasetOpts.bind(datasetCmd)
	rootCmd.AddCommand(searchCmd, datasetCmd)
}

func runSearch(cmd *cobra.Command, mode string, opts *searchOptions, pick searchRun) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", mode))

	env, err := initEnv(ctx, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	f, err := opts.form.base()
	if err != nil {
		return err
	}
	if opts.loadPrevious {
		if err := loadPrevious(ctx, env.Store, opts.form.emailOf(cmd, f), &f); err != nil {
			return err
		}
	}
	opts.form.apply(cmd, &f)

	sess, err := pick(env.Service)(ctx, f)
	if err != nil {
		return err
	}

	if opts.reveal {
		n, err := sess.RevealAll(ctx, env.Client)
		if err != nil {
			log.Warn("reveal failed", zap.Error(err))
		}
		log.Info("revealed opportunities", zap.Int("updated", n))
	}

	return writeSession(opts.out, sess.Snapshot())
}

// loadPrevious overlays the user's saved preferences onto f.
func loadPrevious(ctx context.Context, st store.Store, email string, f *search.Form) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return eris.New("--load-previous needs --email")
	}
	req, err := st.LoadPreferences(ctx, email)
	if err != nil {
		return eris.Wrap(err, "load preferences")
	}
	if req == nil {
		zap.L().Info("no previous search found", zap.String("email", email))
		return nil
	}
	f.Load(*req)
	return nil
}

func writeSession(of outputFlags, snap search.Snapshot) error {
	format, w, closeFn, err := of.open()
	if err != nil {
		return err
	}
	if err := render.Write(w, format, snap, time.Now()); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return eris.Wrap(err, "close output")
	}
	if of.output != "" {
		zap.L().Info("wrote results",
			zap.String("path", of.output),
			zap.String("format", string(format)),
			zap.Int("count", len(snap.Opportunities)),
		)
	}
	return nil
}
