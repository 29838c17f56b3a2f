// Command sheetsync mirrors Wedof API data into a Google Spreadsheet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wedof-tools/sheetsync/pkg/clients"
	"github.com/wedof-tools/sheetsync/pkg/config"
	"github.com/wedof-tools/sheetsync/pkg/logger"
	"github.com/wedof-tools/sheetsync/pkg/sheets"
	"github.com/wedof-tools/sheetsync/pkg/source"
	"github.com/wedof-tools/sheetsync/pkg/syncer"
)

var version = "1.0.0"

var (
	envFile       string
	endpointsFile string
	scheduleTime  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sheetsync",
		Short:         "Wedof to Google Sheets synchronization",
		Long:          "sheetsync mirrors the Wedof API endpoint catalog into the sheets of a Google Spreadsheet.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&endpointsFile, "endpoints", "", "path to an endpoints YAML file replacing the built-in catalog")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run immediately, then daily at the configured time",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&scheduleTime, "time", "", "daily run time HH:MM (overrides SYNC_TIME)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Run one synchronization pass and exit",
			RunE:  runSync,
		},
		scheduleCmd,
		&cobra.Command{
			Use:   "test",
			Short: "Check connectivity to Wedof and Google Sheets",
			RunE:  runTest,
		},
		&cobra.Command{
			Use:   "endpoints",
			Short: "List the endpoint catalog",
			RunE:  runEndpoints,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("sheetsync version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after configuration is loaded.
type app struct {
	cfg       *config.Config
	orch      *syncer.Orchestrator
	endpoints []source.Endpoint
	client    *source.Client
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	_ = logger.Sync()
}

// buildApp loads the environment, configuration and endpoint catalog, and
// wires the source client, destination writer and orchestrator together.
func buildApp(ctx context.Context) (*app, error) {
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
	}); err != nil {
		return nil, err
	}
	log := logger.Get()

	endpoints, err := config.LoadEndpoints(endpointsFile)
	if err != nil {
		return nil, err
	}

	retry := clients.NewRetryPolicy(cfg.Reliability.RetryAttempts, cfg.Reliability.RetryDelay)
	if cfg.Reliability.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.Reliability.MaxRetryDelay
	}

	client := source.NewClient(source.ClientConfig{
		BaseURL:            cfg.Wedof.BaseURL,
		APIKey:             cfg.Wedof.APIKey,
		PageLimit:          cfg.Wedof.PageLimit,
		MinRequestInterval: cfg.Wedof.MinRequestInterval,
		RetryPolicy:        retry,
		ThrottleRetryLimit: cfg.Reliability.ThrottleRetryLimit,
	}, log)

	writer, err := sheets.NewWriter(ctx, sheets.WriterConfig{
		SpreadsheetID:      cfg.Google.SpreadsheetID,
		CredentialsPath:    cfg.Google.CredentialsPath,
		QuotaRetryAttempts: cfg.Reliability.QuotaRetryAttempts,
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		orch:      syncer.NewOrchestrator(client, writer, endpoints, log),
		endpoints: endpoints,
		client:    client,
	}, nil
}

// loadEnvFile loads variables from a .env file when one is available. A
// missing default file is not an error.
func loadEnvFile() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}
		return
	}
	_ = godotenv.Load()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.orch.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(summary, a.orch.SpreadsheetURL())

	if summary.Status() == "failed" {
		return fmt.Errorf("all %d endpoints failed to sync", len(summary.Results))
	}
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	timeOfDay := a.cfg.Schedule.Time
	if scheduleTime != "" {
		timeOfDay = scheduleTime
	}

	sched, err := syncer.NewScheduler(a.orch, timeOfDay, logger.Get())
	if err != nil {
		return err
	}

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	failed := false
	for _, probe := range a.orch.TestConnections(probeCtx) {
		if probe.Err != nil {
			failed = true
			fmt.Printf("✗ %s: %v\n", probe.Target, probe.Err)
		} else {
			fmt.Printf("✓ %s: connection ok\n", probe.Target)
		}
	}

	if failed {
		return fmt.Errorf("connection test failed")
	}
	fmt.Printf("Spreadsheet: %s\n", a.orch.SpreadsheetURL())
	return nil
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	loadEnvFile()
	endpoints, err := config.LoadEndpoints(endpointsFile)
	if err != nil {
		return err
	}
	fmt.Print(syncer.Describe(endpoints))
	return nil
}

// printSummary renders a run summary for operators.
func printSummary(summary *syncer.RunSummary, url string) {
	fmt.Printf("Run %s: %s (%d/%d endpoints, %s)\n",
		summary.RunID, summary.Status(), summary.Succeeded(), len(summary.Results),
		summary.Duration.Round(time.Millisecond))
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Printf("  ✗ %-24s %v\n", r.Endpoint, r.Err)
			continue
		}
		fmt.Printf("  ✓ %-24s %d rows, %d columns (%s)\n",
			r.Endpoint, r.Rows, r.Columns, r.Duration.Round(time.Millisecond))
	}
	fmt.Printf("Spreadsheet: %s\n", url)
}
