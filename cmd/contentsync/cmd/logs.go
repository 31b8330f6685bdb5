package cmd

import (
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/logging"
	"github.com/Aman-CERP/contentsync/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		follow  bool
		level   string
		pass    string
		pattern string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View synchronizer logs",
		Long: `Show the last lines of the synchronizer log. Filters can narrow the output
to a level, a single pass ID, or a regular expression.`,
		Example: `  contentsync logs -n 100
  contentsync logs -f --level warn
  contentsync logs --pass 3f0c2a9e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return serrors.New(serrors.ErrCodeConfigNotFound, err.Error(), nil)
			}

			vc := logging.ViewerConfig{
				Level:   level,
				Pass:    pass,
				NoColor: noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
			}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return serrors.New(serrors.ErrCodeInvalidPattern, "invalid --grep pattern", err)
				}
				vc.Pattern = re
			}
			v := logging.NewViewer(vc, cmd.OutOrStdout())

			entries, err := v.Tail(path, lines)
			if err != nil {
				return err
			}
			v.Print(entries)
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch := make(chan logging.LogEntry, 64)
			done := make(chan error, 1)
			go func() { done <- v.Follow(ctx, path, ch) }()
			for {
				select {
				case entry := <-ch:
					v.Print([]logging.LogEntry{entry})
				case err := <-done:
					return err
				}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&pass, "pass", "", "Only entries of this pass ID")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only lines matching this regular expression")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default ~/.contentsync/logs/sync.log)")

	return cmd
}
