// Package cmd provides the CLI commands for contentsync.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/profiling"
	"github.com/Aman-CERP/contentsync/pkg/version"
)

// Global flags
var (
	projectDir string
	debugMode  bool
	noColor    bool

	profileOpts profiling.Options
	profiler    *profiling.Session
)

// NewRootCmd creates the root command for the contentsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contentsync",
		Short: "Incremental search index synchronizer for versioned content",
		Long: `contentsync keeps a search index in step with a versioned, multi-language
content repository. Each mutation (update, delete, group delete) runs as its
own synchronization pass that fans out to versions, languages, children and
dependent content, and synthesizes language-fallback documents.

The repository is a YAML file (content.yaml by default). Run 'contentsync
watch' to synchronize every change to it as it happens.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("contentsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory containing .contentsync.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = s
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if profiler == nil {
		return nil
	}
	err := profiler.Stop()
	profiler = nil
	return err
}

// Execute runs the root command and prints a formatted error on failure.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), serrors.FormatForCLI(err))
	}
	if profiler != nil {
		_ = profiler.Stop()
	}
	return err
}
