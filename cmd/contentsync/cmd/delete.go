package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

func newDeleteCmd() *cobra.Command {
	var force, verbose bool

	cmd := &cobra.Command{
		Use:   "delete <identity|group>...",
		Short: "Remove content from the index",
		Long: `Remove documents from the index. A full identity
(database:node/language/version) deletes that document and re-evaluates
everything depending on it. A group (database:node) deletes every document
of the node.`,
		Example: `  contentsync delete master:home/en/2
  contentsync delete master:home`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events := make([]content.MutationEvent, 0, len(args))
			for _, arg := range args {
				ev, err := parseDeleteTarget(arg)
				if err != nil {
					return err
				}
				ev.Options = indexingOptions(force)
				events = append(events, ev)
			}
			return runEvents(cmd, events, verbose)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run even while indexing is paused")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every pass, not only failures")

	return cmd
}

// parseDeleteTarget maps an identity to DELETE and a group to DELETE_GROUP.
func parseDeleteTarget(arg string) (content.MutationEvent, error) {
	if id, err := content.ParseIdentity(arg); err == nil {
		return content.MutationEvent{Kind: content.EventDelete, Identity: id}, nil
	}
	group, err := content.ParseGroupID(arg)
	if err != nil {
		return content.MutationEvent{}, serrors.New(serrors.ErrCodeInvalidIdentity,
			fmt.Sprintf("%q is neither an identity nor a group", arg), err).
			WithSuggestion("use database:node/language/version or database:node")
	}
	return content.MutationEvent{
		Kind:     content.EventDeleteGroup,
		Identity: content.Identity{Database: group.Database, NodeID: group.NodeID, Version: content.Latest()},
	}, nil
}
