package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/contentsync/internal/config"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the user config, the
project .contentsync.yaml and CONTENTSYNC_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .contentsync.yaml",
		Long: `Write a .contentsync.yaml with default settings to the project directory.
An existing file is kept unless --force is given, in which case it is
backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, config.ProjectFile)

			if fileExists(path) {
				if !force {
					return serrors.New(serrors.ErrCodeInvalidInput, path+" already exists", nil).
						WithSuggestion("use --force to overwrite it (a backup is kept)")
				}
				backup, err := config.BackupFile(path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s to %s\n", path, backup)
			}

			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
			_, _ = fmt.Fprintf(out, "project: %s\n", filepath.Join(dir, config.ProjectFile))
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore .contentsync.yaml from a backup",
		Long: `Restore the project config from a backup written by 'config init --force'.
Without an argument the newest backup is used. The file being replaced is
backed up as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := absDir(projectDir)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, config.ProjectFile)

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				for _, b := range backups {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			}

			var from string
			switch {
			case len(args) == 1:
				from = args[0]
			case len(backups) > 0:
				from = backups[0]
			default:
				return serrors.New(serrors.ErrCodeConfigNotFound, "no backups of "+path, nil)
			}

			if err := config.RestoreFile(path, from); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, from)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first")

	return cmd
}
