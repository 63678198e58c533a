package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
	"github.com/Thifhi/metall/manager/directory"
)

var lsKind string

func init() {
	cmd := newLsCmd()
	cmd.Flags().StringVar(&lsKind, "kind", "named", "entry kind: named, unique, or anonymous")
	rootCmd.AddCommand(cmd)
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <path> [--kind named|unique|anonymous]",
		Short: "List directory entries of a datastore",
		Long: `The ls command lists the named-object-directory entries of a given
kind. The entries are always read from the store's named_directory file
as last written at close or snapshot; the store itself is not opened.

Example:
  metallctl ls /data/mystore
  metallctl ls /data/mystore --kind unique`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(args)
		},
	}
	return cmd
}

func parseKind(s string) (manager.Kind, error) {
	switch s {
	case "named":
		return manager.Named, nil
	case "unique":
		return manager.Unique, nil
	case "anonymous":
		return manager.Anonymous, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want named, unique, or anonymous)", s)
	}
}

func runLs(args []string) error {
	path := args[0]

	kind, err := parseKind(lsKind)
	if err != nil {
		return err
	}

	printVerbose("Listing %s entries: %s\n", lsKind, path)

	entries, err := manager.ListOffline(path, kind)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	if jsonOut {
		return printJSON(entries)
	}

	if len(entries) == 0 {
		printInfo("No %s entries.\n", lsKind)
		return nil
	}

	printInfo("%-30s %-12s %8s %10s\n", "NAME", "TYPE", "LENGTH", "OFFSET")
	for _, e := range entries {
		printInfo("%-30s %-12s %8d %10d\n", displayName(e), e.TypeID, e.Length, e.Offset)
	}
	return nil
}

func displayName(e directory.Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("<offset:%d>", e.Offset)
}
