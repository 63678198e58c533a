package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

var (
	snapshotClone   bool
	snapshotThreads int
)

func init() {
	cmd := newSnapshotCmd()
	cmd.Flags().BoolVar(&snapshotClone, "clone", true, "prefer a reflink clone over a streaming copy")
	cmd.Flags().IntVar(&snapshotThreads, "threads", 0, "worker threads for the tree copy (0 = automatic)")
	rootCmd.AddCommand(cmd)
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <path> <dst> [--clone] [--threads N]",
		Short: "Snapshot a datastore under a fresh identity",
		Long: `The snapshot command opens path read-write, flushes its management
data, and clones its datastore tree into dst under a freshly generated
UUID.

Example:
  metallctl snapshot /data/mystore /data/mystore-2026-08-06`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(args)
		},
	}
	return cmd
}

func runSnapshot(args []string) error {
	src, dst := args[0], args[1]

	printVerbose("Opening datastore: %s\n", src)
	m, err := manager.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer m.Close()

	printVerbose("Snapshotting to: %s\n", dst)
	if err := m.Snapshot(context.Background(), dst, snapshotClone, snapshotThreads); err != nil {
		return fmt.Errorf("failed to snapshot: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{"src": src, "dst": dst})
	}
	printInfo("Snapshotted %s -> %s\n", src, dst)
	return nil
}
