package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentsync/internal/config"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/preflight"
	"github.com/Aman-CERP/contentsync/internal/store"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the project can be synchronized",
		Long: `Run diagnostics against the project configuration.

Checks:
  - Configuration loads and validates
  - Disk space under the data directory (100MB minimum)
  - Write permissions on the data directory
  - Data directory lock (a running watch holds it)
  - File descriptor limits (1024 minimum)
  - Repository file loads and matches index.database

Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  contentsync doctor

  # JSON output for scripting
  contentsync doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := absDir(projectDir)
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := []preflight.CheckResult{{Name: "config", Required: true}}
	cfg, err := config.Load(dir)
	if err != nil {
		results[0].Status = preflight.StatusFail
		results[0].Message = err.Error()
	} else {
		results[0].Status = preflight.StatusPass
		results[0].Message = cfg.Index.Name
		results[0].Details = dir

		target := preflight.Target{
			RepositoryPath: cfg.Repository.Path,
			Database:       cfg.Index.Database,
		}
		if backend, _ := store.ParseBackend(cfg.Store.Backend); backend != store.BackendMemory {
			target.DataDir = cfg.Store.DataDir
		}
		results = append(results, checker.RunAll(ctx, target)...)
	}

	if jsonOutput {
		out := struct {
			Status string                  `json:"status"`
			Checks []preflight.CheckResult `json:"checks"`
		}{checker.SummaryStatus(results), results}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return serrors.New(serrors.ErrCodeConfigInvalid, "preflight checks failed", nil).
			WithSuggestion("run 'contentsync doctor -v' for details")
	}
	return nil
}
