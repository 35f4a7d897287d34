package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/voicetime/internal/clock"
	"github.com/goodtune/voicetime/internal/config"
	"github.com/goodtune/voicetime/internal/report"
	"github.com/goodtune/voicetime/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var reportLive bool

var reportCmd = &cobra.Command{
	Use:   "report [day]",
	Short: "Print a day's tracked totals",
	Long: `Print the tracked totals for one local day directly from storage.
With no argument the current local day is shown. --live adds time from
sessions that are still open.`,
	Example: `  voicetime report
  voicetime report --live
  voicetime report 2026-01-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportLive, "live", false, "Include still-open sessions")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tz, err := cfg.Tracking.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	clk := clock.RealClock{}
	now := clk.Now()

	dayKey := tracker.LocalDayKey(now, tz)
	if len(args) == 1 {
		dayKey = args[0]
		if _, err := time.Parse(tracker.DayKeyFormat, dayKey); err != nil {
			return fmt.Errorf("day must be YYYY-MM-DD: %w", err)
		}
	}

	core := tracker.New(store, tz, clk, zerolog.Nop())

	// Reuse the report row ordering: seconds descending, ID as name.
	builder := report.NewBuilder(core, report.NewRegistry(), cfg.Tracking.ChannelName, zerolog.Nop())
	rows, err := builder.RowsForDay(context.Background(), dayKey, reportLive, now)
	if err != nil {
		return fmt.Errorf("failed to read totals: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(os.Stdout, "Tracked totals for %s (#%s)\n", dayKey, cfg.Tracking.ChannelName)

	if len(rows) == 0 {
		fmt.Fprintf(os.Stdout, "No tracked activity for %s.\n", dayKey)
		return nil
	}

	cyan := color.New(color.FgCyan)
	for _, row := range rows {
		cyan.Fprintf(os.Stdout, "%12s", report.FormatSeconds(row.Seconds))
		fmt.Fprintf(os.Stdout, "  %s\n", row.DisplayName)
	}

	return nil
}
