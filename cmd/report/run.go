package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/export"
	"github.com/maysaraadmin/moodle-analytics/internal/logger"
	"github.com/maysaraadmin/moodle-analytics/internal/service"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
	"github.com/maysaraadmin/moodle-analytics/internal/source"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the analytics pipeline and write the result tables",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	cmd.Flags().String("source", "", "Data source: moodle, csv or composite (overrides SOURCE_KIND)")
	cmd.Flags().String("csv-dir", "", "Directory of CSV exports (overrides SOURCE_CSV_DIR)")
	cmd.Flags().String("profile", "", "YAML analytics profile (overrides ANALYTICS_PROFILE)")
	cmd.Flags().String("format", string(export.FormatJSON), "Output format: json, yaml or csv")
	cmd.Flags().String("out", "", "Output directory, one file per table. Empty writes json/yaml to stdout.")
	cmd.Flags().StringSlice("tables", nil, "Comma separated table names to write (default all)")
	return cmd
}

// reportFlags are the parsed run flags
type reportFlags struct {
	source  string
	csvDir  string
	profile string
	format  export.Format
	out     string
	tables  []string
}

func parseFlags(cmd *cobra.Command) (reportFlags, error) {
	var f reportFlags
	f.source, _ = cmd.Flags().GetString("source")
	f.csvDir, _ = cmd.Flags().GetString("csv-dir")
	f.profile, _ = cmd.Flags().GetString("profile")
	f.out, _ = cmd.Flags().GetString("out")
	f.tables, _ = cmd.Flags().GetStringSlice("tables")

	name, _ := cmd.Flags().GetString("format")
	format, err := export.ParseFormat(name)
	if err != nil {
		return f, err
	}
	f.format = format

	if f.format == export.FormatCSV && f.out == "" {
		return f, fmt.Errorf("--format csv requires --out")
	}
	for _, t := range f.tables {
		if !isTable(t) {
			return f, fmt.Errorf("unknown table %q (see moodle-report tables)", t)
		}
	}
	return f, nil
}

// applyFlags lays the flag values over the environment configuration
func applyFlags(cfg *config.Config, f reportFlags) error {
	if f.source != "" {
		cfg.Source.Kind = strings.ToLower(f.source)
	}
	if f.csvDir != "" {
		cfg.Source.CSVDir = f.csvDir
	}
	if f.profile != "" {
		profile, err := config.LoadProfile(f.profile)
		if err != nil {
			return err
		}
		profile.Apply(&cfg.Analytics)
	}
	return cfg.Validate()
}

func runReport(cmd *cobra.Command, _ []string) error {
	flags, err := parseFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return err
	}

	log, err := logger.New(cfg.Service.Environment, "report", cfg.Service.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	opts, err := cfg.Analytics.Options()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error("Failed to close data source", zap.Error(err))
		}
	}()

	analyticsService := service.NewAnalyticsService(snapshot.NewManager(src.Reader, src.Cache, log), opts, log)
	analysis, err := analyticsService.Analyze(ctx, service.OptionOverrides{})
	if err != nil {
		return err
	}

	return writeReport(cmd, analysis, flags, log)
}

func writeReport(cmd *cobra.Command, analysis *service.Analysis, flags reportFlags, log *zap.Logger) error {
	tables := selectTables(analysis.Result.Tables(), flags.tables)

	if flags.out == "" {
		return export.WriteDocument(cmd.OutOrStdout(), flags.format, export.Document{
			SnapshotID: analysis.Snapshot.ID.String(),
			LoadedAt:   analysis.Snapshot.LoadedAt,
			Tables:     tables,
			Anomalies:  analysis.Result.Report.Anomalies(),
		})
	}

	paths, err := export.WriteDir(flags.out, flags.format, tables)
	if err != nil {
		return err
	}
	log.Info("Report written",
		zap.String("dir", flags.out),
		zap.String("format", string(flags.format)),
		zap.Int("tables", len(paths)))
	return nil
}

func selectTables(all []analytics.Table, names []string) []analytics.Table {
	if len(names) == 0 {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]analytics.Table, 0, len(names))
	for _, t := range all {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func isTable(name string) bool {
	for _, n := range analytics.TableNames {
		if n == name {
			return true
		}
	}
	return false
}
