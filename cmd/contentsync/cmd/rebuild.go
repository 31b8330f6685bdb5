package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentsync/internal/content"
)

func newRebuildCmd() *cobra.Command {
	var clean, force, verbose bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Synchronize every node of the repository",
		Long: `Run one full fan-out update per repository node. Nodes outside the index
root are removed from the index, excluded nodes are skipped. With --clean
the index is emptied first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), dir, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if clean {
				if err := a.store.Clear(cmd.Context()); err != nil {
					return err
				}
				slog.Info("index cleared", slog.String("index", a.cfg.Index.Name))
			}

			events, err := rebuildEvents(cmd, a, force)
			if err != nil {
				return err
			}
			_, err = newReportingRunner(a, cmd.OutOrStdout(), verbose).Run(cmd.Context(), events)
			return err
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Empty the index before rebuilding")
	cmd.Flags().BoolVar(&force, "force", false, "Run even while indexing is paused")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every pass, not only failures")

	return cmd
}

// rebuildEvents returns one default-scope UPDATE per node, seeded with the
// node's first stored language. Full fan-out covers the other languages.
func rebuildEvents(cmd *cobra.Command, a *app, force bool) ([]content.MutationEvent, error) {
	ctx := cmd.Context()
	db := a.repo.Database()
	languages, err := a.repo.GetLanguages(ctx, db)
	if err != nil {
		return nil, err
	}

	ids := a.repo.NodeIDs()
	events := make([]content.MutationEvent, 0, len(ids))
	for _, nodeID := range ids {
		node, err := a.repo.GetNode(ctx, db, nodeID)
		if err != nil {
			return nil, err
		}
		seed := ""
		switch {
		case node != nil && len(node.Languages) > 0:
			seed = node.Languages[0]
		case len(languages) > 0:
			seed = languages[0]
		default:
			continue
		}
		events = append(events, content.MutationEvent{
			Kind:     content.EventUpdate,
			Identity: content.Identity{Database: db, NodeID: nodeID, Language: seed, Version: content.Latest()},
			Options:  indexingOptions(force),
		})
	}
	return events, nil
}
