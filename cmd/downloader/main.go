package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"splunk-log-downloader/internal/cache"
	"splunk-log-downloader/internal/config"
	"splunk-log-downloader/internal/orchestrator"
	"splunk-log-downloader/internal/report"
	"splunk-log-downloader/internal/splunk"
	"splunk-log-downloader/internal/telemetry"
	"splunk-log-downloader/internal/writer"
)

func main() {
	var (
		configPath  string
		outputPath  string
		forceNewJob bool
		logLevel    string
	)

	rootCmd := &cobra.Command{
		Use:   "downloader",
		Short: "Run a Splunk search and download its results.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var leveler slog.Level
			switch logLevel {
			case "debug":
				leveler = slog.LevelDebug
			case "info":
				leveler = slog.LevelInfo
			case "warn":
				leveler = slog.LevelWarn
			case "error":
				leveler = slog.LevelError
			default:
				return fmt.Errorf("invalid log level %q, use debug, info, warn, or error", logLevel)
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: leveler})
			slog.SetDefault(slog.New(handler))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), configPath, outputPath, forceNewJob)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "Path to the search config file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (overrides config)")
	rootCmd.Flags().BoolVar(&forceNewJob, "force-new-job", false, "Ignore any cached job and submit a fresh one")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent export runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd.Context(), configPath)
		},
	}
	historyCmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "Path to the search config file")
	rootCmd.AddCommand(historyCmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		slog.Info("shutdown requested")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var cancelled *orchestrator.CancelledError
		if errors.As(err, &cancelled) {
			slog.Info("stopped cleanly", "stage", cancelled.Stage)
			os.Exit(130)
		}
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func runExport(ctx context.Context, configPath, outputPath string, forceNewJob bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if outputPath != "" {
		cfg.OutputFile = outputPath
	}

	log := slog.Default()
	if cfg.Search.Debug && cfg.MetricsAddr != "" {
		telemetry.Serve(cfg.MetricsAddr, func(err error) {
			log.Warn("metrics server stopped", "error", err)
		})
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cfg.RedisAddr)
	} else {
		store = cache.NewFileStore(cfg.CacheFile)
	}

	out, err := writer.Create(cfg.OutputFile, cfg.Search.OutputMode, cfg.Compress)
	if err != nil {
		return err
	}

	svc := splunk.NewClient(cfg.SplunkURL, cfg.Username, cfg.Password, cfg.RequestTimeout)
	o := orchestrator.New(cfg, svc, store, log)

	summary, runErr := o.Run(ctx, forceNewJob, out)
	if closeErr := out.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	recordRun(ctx, cfg, summary, runErr, log)
	if runErr != nil {
		// A partial file is left behind on purpose so the failure can
		// be inspected, but it is never uploaded.
		return runErr
	}

	log.Info("output written", "path", out.Path(), "rows", summary.Rows)

	if cfg.S3Bucket != "" {
		uploader, err := writer.NewUploader(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return err
		}
		url, err := uploader.UploadFile(ctx, out.Path(), cfg.Search.OutputMode)
		if err != nil {
			return err
		}
		log.Info("output uploaded", "url", url)
	}
	return nil
}

// recordRun appends the run to the history database when one is configured.
// History is best-effort and never fails the run.
func recordRun(ctx context.Context, cfg *config.Config, summary *orchestrator.Summary, runErr error, log *slog.Logger) {
	if cfg.HistoryDB == "" {
		return
	}
	store, err := report.Open(cfg.HistoryDB)
	if err != nil {
		log.Warn("history db unavailable", "error", err)
		return
	}
	defer store.Close()

	run := report.Run{
		Fingerprint: cfg.Search.Fingerprint(),
		OutputMode:  cfg.Search.OutputMode,
		Outcome:     outcomeFor(runErr),
		StartedAt:   time.Now().UTC(),
	}
	if summary != nil {
		run.RunID = summary.RunID
		run.SID = summary.SID
		run.Rows = summary.Rows
		run.Reused = summary.Reused
		run.Duration = summary.Duration
		run.StartedAt = run.StartedAt.Add(-summary.Duration)
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if err := store.Record(ctx, run); err != nil {
		log.Warn("failed to record run history", "error", err)
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return "ok"
	}
	var auth *orchestrator.AuthError
	var sub *orchestrator.SubmissionError
	var timeout *orchestrator.PollTimeoutError
	var cancelled *orchestrator.CancelledError
	var empty *orchestrator.AllExtractionMethodsFailedError
	switch {
	case errors.As(err, &auth):
		return "auth_failed"
	case errors.As(err, &sub):
		return "submission_failed"
	case errors.As(err, &timeout):
		return "poll_timeout"
	case errors.As(err, &cancelled):
		return "cancelled"
	case errors.As(err, &empty):
		return "no_data"
	default:
		return "failed"
	}
}

func showHistory(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return errors.New("HISTORY_DB is not configured")
	}
	store, err := report.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, 20)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-10s  mode=%-7s  rows=%-8d  reused=%-5v  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.OutputMode, r.Rows, r.Reused, r.SID)
	}
	return nil
}
