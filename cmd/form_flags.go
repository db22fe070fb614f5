package main

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bidscout/internal/model"
	"github.com/sells-group/bidscout/internal/render"
	"github.com/sells-group/bidscout/internal/search"
)

// formFlags are the search form fields settable from the command line.
type formFlags struct {
	formFile        string
	webhookURL      string
	email           string
	name            string
	zip             string
	naics           string
	psc             string
	keywords        string
	setAsides       []string
	maxDistance     int
	minValue        int
	bidComfortDays  int
	minDays         int
	includeAwarded  bool
	requireLocation bool
	special         string
	rankings        []string
}

func (ff *formFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&ff.formFile, "form", "", "YAML file with form fields (flags override it)")
	fs.StringVar(&ff.webhookURL, "webhook-url", "", "webhook URL (default from config)")
	fs.StringVar(&ff.email, "email", "", "your email address")
	fs.StringVar(&ff.name, "name", "", "your name (default: email local part)")
	fs.StringVar(&ff.zip, "zip", "", "company 5-digit ZIP code")
	fs.StringVar(&ff.naics, "naics", "", "comma-separated NAICS codes")
	fs.StringVar(&ff.psc, "psc", "", "comma-separated PSC codes")
	fs.StringVar(&ff.keywords, "keywords", "", "comma-separated keywords matched against title and description")
	fs.StringSliceVar(&ff.setAsides, "set-asides", nil, "accepted set-aside codes, e.g. NONE,SBA")
	fs.IntVar(&ff.maxDistance, "max-distance", 0, "maximum distance in miles")
	fs.IntVar(&ff.minValue, "min-value", 0, "minimum contract value in dollars")
	fs.IntVar(&ff.bidComfortDays, "bid-comfort", 0, "days you need to prepare a bid")
	fs.IntVar(&ff.minDays, "min-days", 0, "minimum days until the response deadline")
	fs.BoolVar(&ff.includeAwarded, "include-awarded", false, "include awarded opportunities")
	fs.BoolVar(&ff.requireLocation, "require-location", false, "require a place of performance")
	fs.StringVar(&ff.special, "special", "", "free-text special request passed to the webhook")
	fs.StringSliceVar(&ff.rankings, "rankings", nil, "priority order, most important first: value,feasibility,location,special,effort")
}

// form builds the form: defaults, then the --form file, then any flags the
// user set explicitly.
func (ff *formFlags) form(cmd *cobra.Command) (search.Form, error) {
	f, err := ff.base()
	if err != nil {
		return search.Form{}, err
	}
	ff.apply(cmd, &f)
	return f, nil
}

// base returns the defaults overlaid with the --form file, if any.
func (ff *formFlags) base() (search.Form, error) {
	f := search.NewForm(searchDefaults())
	if ff.formFile == "" {
		return f, nil
	}
	return search.LoadFormFile(ff.formFile, f)
}

// apply copies the explicitly set flags onto f.
func (ff *formFlags) apply(cmd *cobra.Command, f *search.Form) {
	changed := cmd.Flags().Changed
	if changed("webhook-url") {
		f.WebhookURL = ff.webhookURL
	}
	if changed("email") {
		f.UserEmail = ff.email
	}
	if changed("name") {
		f.UserName = ff.name
	}
	if changed("zip") {
		f.CompanyZip = ff.zip
	}
	if changed("naics") {
		f.NAICS = ff.naics
	}
	if changed("psc") {
		f.PSC = ff.psc
	}
	if changed("keywords") {
		f.Keywords = ff.keywords
	}
	if changed("set-asides") {
		f.SetAsides = ff.setAsides
	}
	if changed("max-distance") {
		f.MaxDistance = ff.maxDistance
	}
	if changed("min-value") {
		f.MinValue = ff.minValue
	}
	if changed("bid-comfort") {
		f.BidComfortDays = ff.bidComfortDays
	}
	if changed("min-days") {
		f.MinDays = ff.minDays
	}
	if changed("include-awarded") {
		f.IncludeAwarded = ff.includeAwarded
	}
	if changed("require-location") {
		f.RequireLocation = ff.requireLocation
	}
	if changed("special") {
		f.SpecialRequest = ff.special
	}
	if changed("rankings") {
		f.Rankings = make(model.Rankings, len(ff.rankings))
		for i, p := range ff.rankings {
			f.Rankings[i] = model.Priority(strings.ToLower(strings.TrimSpace(p)))
		}
	}
}

// emailOf returns the address the form will be submitted with.
func (ff *formFlags) emailOf(cmd *cobra.Command, f search.Form) string {
	if cmd.Flags().Changed("email") {
		return ff.email
	}
	return f.UserEmail
}

// outputFlags select how results are written.
type outputFlags struct {
	format string
	output string
}

func (of *outputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&of.format, "format", "table", "output format: table, json, csv, xlsx or html")
	cmd.Flags().StringVarP(&of.output, "output", "o", "", "write to file instead of stdout")
}

// open returns the output format and destination. xlsx needs a file.
func (of *outputFlags) open() (render.Format, io.Writer, func() error, error) {
	format, err := render.ParseFormat(of.format)
	if err != nil {
		return "", nil, nil, err
	}
	if of.output == "" {
		if format == render.FormatXLSX {
			return "", nil, nil, eris.New("--output is required for xlsx")
		}
		return format, os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(of.output)
	if err != nil {
		return "", nil, nil, eris.Wrapf(err, "create %s", of.output)
	}
	return format, f, f.Close, nil
}
