package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/bibe/internal/config"
	"github.com/brogergvhs/bibe/internal/layout"
	"github.com/brogergvhs/bibe/internal/providers"
	"github.com/brogergvhs/bibe/internal/ui"
	"github.com/brogergvhs/bibe/internal/util"
)

const requestTimeout = 60 * time.Second

var (
	// selection
	flagURL      string
	flagBegin    float64
	flagEnd      float64
	flagLanguage string
	flagGroups   []string

	// runtime
	flagOutput     string
	flagDelay      int
	flagRetry      int
	flagWorkers    int
	flagCBZ        bool
	flagDryRun     bool
	flagNoProgress bool

	// headers/auth
	flagUserAgent  string
	flagCookie     string
	flagCookieFile string
	flagCFBypass   bool
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download the chapters of a series. Uses the defaults from the selected config, overwritten by env and CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "series page URL")
	downloadCmd.Flags().Float64Var(&flagBegin, "begin", 0, "first chapter to download (inclusive)")
	downloadCmd.Flags().Float64Var(&flagEnd, "end", 0, "last chapter to download (inclusive)")
	downloadCmd.Flags().StringVar(&flagLanguage, "language", "", "chapter language, e.g. \"gb\" (default any)")
	downloadCmd.Flags().StringArrayVar(&flagGroups, "group", nil, "preferred scanlation group, repeat in order of preference")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder (default \".\")")
	downloadCmd.Flags().IntVar(&flagDelay, "delay", config.DefaultDelayMS, "delay between requests in ms")
	downloadCmd.Flags().IntVar(&flagRetry, "retry", config.DefaultRetries, "retries for a failed request")
	downloadCmd.Flags().IntVar(&flagWorkers, "workers", 1, "parallel page downloads per chapter")
	downloadCmd.Flags().BoolVar(&flagCBZ, "cbz", false, "pack every chapter folder into a CBZ file")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "list the selected chapters, don't download")
	downloadCmd.Flags().BoolVar(&flagNoProgress, "no-progress", false, "disable progress bars")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().BoolVar(&flagCFBypass, "cf-bypass", false, "use browser-like transport settings for Cloudflare-fronted sites")

	rootCmd.AddCommand(downloadCmd)
}

// downloadOptions maps the flags given on the command line to config
// options. Flags left at their defaults do not override env or profile.
func downloadOptions(cmd *cobra.Command) config.Options {
	opts := config.Options{
		IgnoreConfig:    flagIgnoreConfig,
		Debug:           flagDebug,
		Output:          flagOutput,
		Language:        flagLanguage,
		PreferredGroups: flagGroups,
		URL:             flagURL,
		UserAgent:       flagUserAgent,
		Cookie:          flagCookie,
		CookieFile:      flagCookieFile,
		CFBypass:        flagCFBypass,
		CBZ:             flagCBZ,
		NoProgress:      flagNoProgress,
	}

	flags := cmd.Flags()
	if flags.Changed("delay") {
		opts.DelayMS = &flagDelay
	}
	if flags.Changed("retry") {
		opts.Retries = &flagRetry
	}
	if flags.Changed("workers") {
		opts.Workers = &flagWorkers
	}
	if flags.Changed("begin") {
		opts.Begin = &flagBegin
	}
	if flags.Changed("end") {
		opts.End = &flagEnd
	}

	return opts
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, usedPath, err := config.LoadMerged(downloadOptions(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logSvc := ui.NewLoggerTo(cmd.ErrOrStderr(), cfg.Debug)

	logSvc.Debugf("config file: %s", usedPath)

	if cfg.DefaultURL == "" {
		return fmt.Errorf("missing --url and no default_url in config")
	}

	seriesURL, err := url.Parse(cfg.DefaultURL)
	if err != nil || !seriesURL.IsAbs() {
		return fmt.Errorf("invalid series URL %q", cfg.DefaultURL)
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          requestTimeout,
		UserAgent:        cfg.UserAgent,
		Cookie:           cfg.Cookie,
		CookieFile:       cfg.CookieFile,
		CloudflareBypass: cfg.CFBypass,
		DebugLogger:      logSvc,
	})
	if err != nil {
		return err
	}

	ctx, cancel := util.SetupInterruptHandler(cmd.Context(), logSvc)
	defer cancel()

	var progress *ui.MPBProgressManager
	opts := providers.Options{
		Delay:      cfg.Delay(),
		MaxRetries: cfg.Retries,
		OutputDir:  cfg.Output,
		Workers:    cfg.Workers,
		Client:     client,
		Logger:     logSvc,
	}
	if cfg.Progress && !flagDryRun {
		progress = ui.NewProgressManager(cmd.ErrOrStderr())
		opts.Progress = func(label string) providers.Progress {
			return progress.Register(label)
		}
	}

	provider, err := providers.ForURL(seriesURL, opts)
	if err != nil {
		return err
	}
	logSvc.Debugf("using %s for %s", provider.Name(), seriesURL.Host)

	begin, end := cfg.Bounds()
	filter := providers.Filter{
		Range:           providers.Range{Begin: begin, End: end},
		Language:        cfg.Language,
		PreferredGroups: cfg.PreferredGroups,
	}

	job := &downloadJob{
		provider: provider,
		output:   cfg.Output,
		cbz:      cfg.CBZ,
		dryRun:   flagDryRun,
		log:      logSvc,
		out:      out,
	}

	start := time.Now()
	err = job.run(ctx, seriesURL, filter)

	if progress != nil {
		progress.Close()
	}
	if err != nil {
		return err
	}

	if !job.dryRun {
		job.stats.Summary(out, time.Since(start))
	}

	return nil
}

type downloadJob struct {
	provider providers.Provider
	output   string
	cbz      bool
	dryRun   bool
	log      *ui.Logger
	out      io.Writer

	stats ui.Stats
}

func (j *downloadJob) run(ctx context.Context, u *url.URL, filter providers.Filter) error {
	series, err := j.provider.Series(ctx, u)
	if err != nil {
		return err
	}

	chapters, err := j.provider.Chapters(ctx, series, filter)
	if err != nil {
		return err
	}

	if len(chapters) == 0 {
		return fmt.Errorf("no chapters of %q in range %s", series.Title, filter.Range)
	}

	if j.dryRun {
		j.printChapters(series, chapters)
		return nil
	}

	if err := j.provider.Mkdir(chapters); err != nil {
		return err
	}

	// first chapter of every folder, for packing
	var packed []*providers.Chapter
	seen := make(map[string]bool)

	for _, c := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}

		pages, err := j.provider.Pages(ctx, c)
		if err != nil {
			return err
		}

		res, err := j.provider.DownloadAll(ctx, pages)
		if err != nil {
			return err
		}

		j.stats.TotalChapters.Add(1)
		j.stats.TotalPages.Add(int64(res.Downloaded))
		j.stats.SkippedPages.Add(int64(res.Skipped))
		j.stats.TotalBytes.Add(res.Bytes)

		if dir := layout.ChapterDir(j.output, c); !seen[dir] {
			seen[dir] = true
			packed = append(packed, c)
		}
	}

	if !j.cbz {
		return nil
	}

	// Volume folders hold several chapters, so packing waits for the last one.
	for _, c := range packed {
		dir, output := layout.ChapterDir(j.output, c), layout.CBZPath(j.output, c)
		if err := util.CreateCBZ(dir, output); err != nil {
			return fmt.Errorf("pack %s: %w", filepath.Base(dir), err)
		}
		j.log.Infof("packed %s", output)
	}

	return nil
}

func (j *downloadJob) printChapters(series *providers.Series, chapters []*providers.Chapter) {
	_, _ = fmt.Fprintf(j.out, "%s: %d chapters\n", series.Title, len(chapters))

	for _, c := range chapters {
		dir, err := filepath.Rel(j.output, layout.ChapterDir(j.output, c))
		if err != nil {
			dir = layout.ChapterDir(j.output, c)
		}
		_, _ = fmt.Fprintf(j.out, "  %-8s -> %s\n", c.Number, dir)
	}
}
