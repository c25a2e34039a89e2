package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/SLRReport/internal/aggregate"
	"github.com/TobiSchelling/SLRReport/internal/config"
	"github.com/TobiSchelling/SLRReport/internal/database"
	"github.com/TobiSchelling/SLRReport/internal/logging"
	"github.com/TobiSchelling/SLRReport/internal/pipeline"
	"github.com/TobiSchelling/SLRReport/internal/report"
	"github.com/TobiSchelling/SLRReport/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "slrreport",
	Short:   "Screening analysis for systematic literature reviews",
	Long:    "slrreport classifies screened records by exclusion criterion, checks the totals and renders consistent tables, charts and flow diagrams.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		logger.Debug("loaded config", zap.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("slrreport", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/slrreport/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point inputs.data_dir at your screening exports.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and input status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Archive: %s\n\n", db.Path())
		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.Runs)
		fmt.Printf("  With integrity errors: %d\n", stats.FailedRuns)
		fmt.Printf("  Classified records: %d\n", stats.Classifications)
		fmt.Printf("  Distinct categories: %d\n", stats.Categories)

		latest, err := db.LatestRun()
		if err != nil {
			return err
		}
		if latest != nil {
			fmt.Printf("\nLatest: %s (%s, %s)\n", latest.Label, database.ShortID(latest.ID),
				database.FormatTimestamp(deref(latest.CreatedAt)))
		}

		fmt.Println("\nInputs:")
		for _, step := range pipeline.New(cfg, nil, logger).DryRun().Steps[:4] {
			fmt.Printf("  %s: %s\n", step.Name, step.Summary)
		}
		return nil
	},
}

// --- analyze command ---

var (
	dryRun    bool
	noArchive bool
	runLabel  string
	outDir    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full pipeline: load -> enrich -> aggregate -> project -> render -> archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		var db *database.DB
		if !noArchive {
			var err error
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		pipe := pipeline.New(cfg, db, logger)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(ctx, pipeline.Options{Label: runLabel, OutputDir: outDir})
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/6: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if dryRun {
			return nil
		}
		if result.Report != nil && result.Report.Result != nil {
			fmt.Println()
			fmt.Println(report.Summary(result.Report.Result))
		}
		if result.Failed() {
			return fmt.Errorf("run %s finished with errors", database.ShortID(result.RunID))
		}
		fmt.Println("\nAnalysis complete! Run 'slrreport serve' to browse the run.")
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show which inputs would be read without executing")
	analyzeCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Do not store the run in the archive")
	analyzeCmd.Flags().StringVarP(&runLabel, "label", "l", "", "Label for the run (default: timestamp)")
	analyzeCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for the report files")
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import candidate records from saved Atom/RSS search exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Importing feed exports...")
		result, path, err := pipeline.New(cfg, nil, logger).Import(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New records: %d\n", result.NewArticles)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		if result.Failed > 0 {
			fmt.Printf("  Feeds that failed to parse: %d\n", result.Failed)
		}
		fmt.Printf("  Written to: %s\n", path)

		if len(result.Sources) > 0 {
			fmt.Println("\nRecords by source:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- runs command ---

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage archived runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs archived. Create one with: slrreport analyze")
			return nil
		}

		for _, r := range runs {
			status := " "
			if r.IntegrityError != nil {
				status = "!"
			}
			fmt.Printf("  %s %s  %-32s  %s  excluded %d of %d\n", status, database.ShortID(r.ID), r.Label,
				database.FormatTimestamp(deref(r.CreatedAt)), r.Excluded, r.AfterDedup)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print the exclusion summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}

		var res aggregate.Result
		if err := json.Unmarshal([]byte(run.ResultJSON), &res); err != nil {
			return fmt.Errorf("decoding archived result: %w", err)
		}

		fmt.Printf("%s (%s)\n", run.Label, run.ID)
		if run.IntegrityError != nil {
			fmt.Printf("Integrity error: %s\n", *run.IntegrityError)
		}
		fmt.Println()
		fmt.Println(report.Summary(&res))
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteRun(run.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted run [%s]: %s\n", database.ShortID(run.ID), run.Label)
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

// findRun resolves a full run ID or a unique short-ID prefix.
func findRun(db *database.DB, id string) (*database.Run, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match *database.Run
	for i := range runs {
		if len(id) >= 4 && len(runs[i].ID) >= len(id) && runs[i].ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return match, nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, database.FileName), logger)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
