package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

var statKind string

func init() {
	cmd := newStatCmd()
	cmd.Flags().StringVar(&statKind, "kind", "named", "entry kind: named, unique, or anonymous")
	rootCmd.AddCommand(cmd)
}

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <path> <name>",
		Short: "Show one directory entry's attributes",
		Long: `The stat command reports a single directory entry's offset, length,
type token, and description.

Example:
  metallctl stat /data/mystore counters`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStat(args)
		},
	}
	return cmd
}

func runStat(args []string) error {
	path, name := args[0], args[1]

	kind, err := parseKind(statKind)
	if err != nil {
		return err
	}

	printVerbose("Reading entry %q (%s): %s\n", name, statKind, path)

	entries, err := manager.ListOffline(path, kind)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, e := range entries {
		if e.Name != name {
			continue
		}
		if jsonOut {
			return printJSON(e)
		}
		printInfo("Name: %s\n", e.Name)
		printInfo("  Kind: %s\n", e.Kind)
		printInfo("  Type: %s\n", e.TypeID)
		printInfo("  Offset: %d\n", e.Offset)
		printInfo("  Length: %d\n", e.Length)
		if e.Description != "" {
			printInfo("  Description: %s\n", e.Description)
		}
		return nil
	}

	return fmt.Errorf("no %s entry named %q", statKind, name)
}
