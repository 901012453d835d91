// Command sdguide: Schedules Direct listings from the command line.
//
//	validate  Check credentials and subscribe the account to the configured lineup when missing
//	headends  List lineups offered for a country and postal code
//	lineup    Show the channel map of the configured lineup
//	guide     Fetch listings for every mapped channel and write JSON or XMLTV
//	status    Report account expiry, system status and lineup subscription
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/snapetech/sdguide/internal/config"
	"github.com/snapetech/sdguide/internal/guide"
	"github.com/snapetech/sdguide/internal/health"
	"github.com/snapetech/sdguide/internal/httpclient"
	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
	"github.com/snapetech/sdguide/internal/metrics"
	"github.com/snapetech/sdguide/internal/schedulesdirect"
	"github.com/snapetech/sdguide/internal/xmltv"
)

// version is set at link time: -ldflags "-X main.version=1.2.3".
var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <validate|headends|lineup|guide|status> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  validate  Check credentials; subscribe to SDGUIDE_SD_LISTINGS_ID when missing\n")
	fmt.Fprintf(os.Stderr, "  headends  List lineups for -country and -postal\n")
	fmt.Fprintf(os.Stderr, "  lineup    Print channel number -> station for the configured lineup\n")
	fmt.Fprintf(os.Stderr, "  guide     Fetch listings (-days, -format json|xmltv, -out file)\n")
	fmt.Fprintf(os.Stderr, "  status    Account and lineup health\n")
}

func main() {
	_ = config.LoadEnvFile(".env")
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

// app is what every command needs after startup.
type app struct {
	cfg      *config.Config
	info     livetv.ProviderInfo
	provider *schedulesdirect.Provider
}

func newApp(configPath, listingsID string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Logging())
	schedulesdirect.Version = version
	p := schedulesdirect.New(schedulesdirect.Options{
		BaseURL:    cfg.SD.BaseURL,
		UserAgent:  cfg.SD.UserAgent,
		HTTPClient: httpclient.New(cfg.HTTPOptions()),
		RateLimit:  cfg.SD.RateLimit,
		RateBurst:  cfg.SD.RateBurst,
	})
	info := cfg.ProviderInfo()
	if listingsID != "" {
		info.ListingsID = listingsID
	}
	return &app{cfg: cfg, info: info, provider: p}, nil
}

func run(cmd string, args []string) int {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (default: SDGUIDE_CONFIG)")
	listings := fs.String("listings", "", "Lineup id, e.g. USA-OTA-90210 (default: SDGUIDE_SD_LISTINGS_ID)")
	var (
		country, postal       *string
		days, concurrency     *int
		format, out, channels *string
	)
	switch cmd {
	case "validate", "lineup", "status":
	case "headends":
		country = fs.String("country", "", "Country code (default: SDGUIDE_SD_COUNTRY)")
		postal = fs.String("postal", "", "Postal code (default: SDGUIDE_SD_POSTAL_CODE)")
	case "guide":
		days = fs.Int("days", 0, "Days of listings (default: SDGUIDE_GUIDE_DAYS)")
		concurrency = fs.Int("concurrency", 0, "Channels fetched at once (default: SDGUIDE_GUIDE_CONCURRENCY)")
		format = fs.String("format", "", "json or xmltv (default: SDGUIDE_GUIDE_FORMAT)")
		out = fs.String("out", "", "Output file; - for stdout (default: SDGUIDE_GUIDE_OUTPUT)")
		channels = fs.String("channels", "", "Comma-separated channel numbers (default: every mapped channel)")
	default:
		usage()
		return 1
	}
	_ = fs.Parse(args)

	a, err := newApp(*configPath, *listings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdguide: %v\n", err)
		return 1
	}
	defer logging.Close()
	defer func() {
		if a.cfg.Metrics.Textfile == "" {
			return
		}
		if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			logging.Warn().Err(err).Str("path", a.cfg.Metrics.Textfile).Msg("metrics textfile not written")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "validate":
		err = a.validate(ctx)
	case "headends":
		err = a.headends(ctx, pick(*country, a.cfg.SD.Country), pick(*postal, a.cfg.SD.PostalCode))
	case "lineup":
		err = a.lineup(ctx)
	case "guide":
		opts := guide.Options{
			Days:        a.cfg.Guide.Days,
			Concurrency: a.cfg.Guide.Concurrency,
		}
		if *days > 0 {
			opts.Days = *days
		}
		if *concurrency > 0 {
			opts.Concurrency = *concurrency
		}
		for _, n := range strings.Split(*channels, ",") {
			if n = strings.TrimSpace(n); n != "" {
				opts.Channels = append(opts.Channels, &livetv.ChannelInfo{ID: n, Number: n, Name: n})
			}
		}
		err = a.guide(ctx, opts, pick(*format, a.cfg.Guide.Format), pick(*out, a.cfg.Guide.Output))
	case "status":
		err = a.status(ctx)
	}
	if err != nil {
		logging.Error().Err(err).Str("command", cmd).Msg("failed")
		return 1
	}
	return 0
}

func pick(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	return configured
}

func (a *app) validate(ctx context.Context) error {
	if err := a.provider.Validate(ctx, a.info, true, a.info.ListingsID != ""); err != nil {
		return err
	}
	tok, err := a.provider.GetToken(ctx, a.info)
	if err != nil {
		return err
	}
	if tok == "" {
		return fmt.Errorf("no token issued for %s", a.info.Username)
	}
	logging.Info().Str("user", a.info.Username).Str("lineup", a.info.ListingsID).Msg("account OK")
	return nil
}

func (a *app) headends(ctx context.Context, country, postal string) error {
	if postal == "" {
		return fmt.Errorf("postal code required (-postal or SDGUIDE_SD_POSTAL_CODE)")
	}
	lineups, err := a.provider.GetHeadends(ctx, a.info, country, postal)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, l := range lineups {
		fmt.Fprintf(tw, "%s\t%s\n", l.ID, l.Name)
	}
	return tw.Flush()
}

func (a *app) lineup(ctx context.Context) error {
	if err := a.provider.AddMetadata(ctx, a.info, nil); err != nil {
		return err
	}
	numbers := a.provider.ChannelNumbers()
	channels := make([]*livetv.ChannelInfo, 0, len(numbers))
	for _, n := range numbers {
		channels = append(channels, &livetv.ChannelInfo{Number: n, Name: n})
	}
	a.provider.ApplyToChannelList(channels)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSTATION\tNAME\tLOGO")
	for _, ch := range channels {
		station, _ := a.provider.LookupStation(ch.Number)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ch.Number, station, ch.Name, ch.ImageURL)
	}
	return tw.Flush()
}

func (a *app) guide(ctx context.Context, opts guide.Options, format, out string) error {
	g, err := guide.Fetch(ctx, a.provider, a.info, opts)
	if err != nil {
		return err
	}
	w := io.Writer(os.Stdout)
	if out != "" && out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(g)
	default:
		err = xmltv.Write(w, g.Channels, g.Programs)
	}
	if err != nil {
		return fmt.Errorf("write guide: %w", err)
	}
	if f, ok := w.(*os.File); ok && f != os.Stdout {
		if err := f.Sync(); err != nil {
			return err
		}
		logging.Info().Str("path", out).Str("format", format).Int("programs", len(g.Programs)).Msg("guide written")
	}
	return nil
}

func (a *app) status(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := health.CheckAPI(checkCtx, httpclient.New(a.cfg.HTTPOptions()), a.cfg.SD.BaseURL); err != nil {
		return err
	}
	r, err := health.CheckAccount(checkCtx, a.provider, a.info, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(r.Status.String())
	for _, m := range r.Status.Messages {
		fmt.Println("message:", m)
	}
	if !r.OK() {
		for _, p := range r.Problems {
			fmt.Println("problem:", p)
		}
		return fmt.Errorf("%d problem(s)", len(r.Problems))
	}
	fmt.Println("OK")
	return nil
}
