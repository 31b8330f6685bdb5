package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentsync/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index contents and synchronization settings",
		Long: `Show what the index holds (documents per language, latest and fallback
counts, size on disk) next to the settings it is synchronized with.
Status does not take the data directory lock and can run beside watch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), dir, appOptions{readOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := collectStatus(cmd, a)
			if err != nil {
				return err
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

func collectStatus(cmd *cobra.Command, a *app) (ui.StatusInfo, error) {
	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return ui.StatusInfo{}, err
	}

	info := ui.StatusInfo{
		IndexName:           a.cfg.Index.Name,
		Database:            a.cfg.Index.Database,
		Root:                a.cfg.Index.Root,
		Backend:             string(stats.Backend),
		StorePath:           a.storePath(),
		Documents:           stats.Documents,
		Groups:              stats.Groups,
		Latest:              stats.Latest,
		Fallback:            stats.Fallback,
		ByLanguage:          stats.ByLanguage,
		SizeOnDisk:          stats.SizeOnDisk,
		ItemFallback:        a.cfg.Index.EnableItemLanguageFallback,
		FieldFallback:       a.cfg.Index.EnableFieldLanguageFallback,
		ProcessDependencies: a.cfg.Index.ProcessDependencies,
		ReadConsistency:     a.cfg.Index.ReadConsistency,
		Paused:              a.oracle.Paused(),
		RepositoryPath:      a.cfg.Repository.Path,
		RepositoryNodes:     len(a.repo.NodeIDs()),
	}
	if info.StorePath != "" {
		if fi, err := os.Stat(info.StorePath); err == nil {
			info.ModifiedAt = fi.ModTime()
		}
	}
	return info, nil
}
