package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// scopeFlags are the fan-out flags of an UPDATE event.
type scopeFlags struct {
	allVersions     bool
	allLanguages    bool
	children        bool
	previousVersion bool
	oldParent       string
	noFanOut        bool
}

func (f scopeFlags) context() *content.OperationContext {
	op := &content.OperationContext{
		NeedUpdateAllVersions:     f.allVersions,
		NeedUpdateAllLanguages:    f.allLanguages,
		NeedUpdateChildren:        f.children,
		NeedUpdatePreviousVersion: f.previousVersion,
		OldParentID:               f.oldParent,
	}
	if *op == (content.OperationContext{}) && !f.noFanOut {
		// no flags: default full fan-out
		return nil
	}
	return op
}

func newUpdateCmd() *cobra.Command {
	var scope scopeFlags
	var force, verbose bool

	cmd := &cobra.Command{
		Use:   "update <identity>...",
		Short: "Synchronize content items into the index",
		Long: `Synchronize one or more content items. An identity has the form
database:node/language/version, where version is a number or "latest".

Without scope flags every version in every language is refreshed. Scope
flags narrow the pass to the given version plus the parts they name.
Each identity runs as its own pass, concurrently.`,
		Example: `  contentsync update master:home/en/latest
  contentsync update master:home/en/3 --previous-version
  contentsync update master:news/en/latest --children --old-parent=archive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events := make([]content.MutationEvent, 0, len(args))
			for _, arg := range args {
				id, err := content.ParseIdentity(arg)
				if err != nil {
					return serrors.New(serrors.ErrCodeInvalidIdentity, err.Error(), err)
				}
				events = append(events, content.MutationEvent{
					Kind:     content.EventUpdate,
					Identity: id,
					Context:  scope.context(),
					Options:  indexingOptions(force),
				})
			}
			return runEvents(cmd, events, verbose)
		},
	}

	cmd.Flags().BoolVar(&scope.allVersions, "all-versions", false, "Also refresh every other version")
	cmd.Flags().BoolVar(&scope.allLanguages, "all-languages", false, "Also refresh every other language")
	cmd.Flags().BoolVar(&scope.children, "children", false, "Also refresh the subtree below the item")
	cmd.Flags().BoolVar(&scope.previousVersion, "previous-version", false, "Also refresh the preceding version (demotes its latest flag)")
	cmd.Flags().StringVar(&scope.oldParent, "old-parent", "", "Former parent ID of a moved item")
	cmd.Flags().BoolVar(&scope.noFanOut, "no-fanout", false, "Refresh only the given version")
	cmd.Flags().BoolVar(&force, "force", false, "Run even while indexing is paused")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every pass, not only failures")

	return cmd
}

func indexingOptions(force bool) content.IndexingOptions {
	if force {
		return content.IndexingForced
	}
	return content.IndexingDefault
}

// runEvents opens the app and runs events as one batch.
func runEvents(cmd *cobra.Command, events []content.MutationEvent, verbose bool) error {
	dir, err := absDir(projectDir)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), dir, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = newReportingRunner(a, cmd.OutOrStdout(), verbose).Run(cmd.Context(), events)
	return err
}
