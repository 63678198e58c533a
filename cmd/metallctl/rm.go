package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

func init() {
	rootCmd.AddCommand(newRmCmd())
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a datastore",
		Long: `The rm command recursively deletes a datastore's datastore/ directory
(including its uuid and description files) and the marker and version
files beside it. The caller must ensure no
process still has the store open.

Example:
  metallctl rm /data/mystore`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(args)
		},
	}
	return cmd
}

func runRm(args []string) error {
	path := args[0]

	printVerbose("Removing datastore: %s\n", path)
	if err := manager.Remove(path); err != nil {
		return fmt.Errorf("failed to remove datastore: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{"path": path, "removed": true})
	}
	printInfo("Removed %s\n", path)
	return nil
}
