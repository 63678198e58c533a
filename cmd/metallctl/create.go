package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

var (
	createCapacity  int64
	createChunkSize int64
)

func init() {
	cmd := newCreateCmd()
	cmd.Flags().Int64Var(&createCapacity, "capacity", 0, "VM reservation ceiling in bytes (0 = default)")
	cmd.Flags().Int64Var(&createChunkSize, "chunk-size", 0, "coarse allocation unit in bytes (0 = default)")
	rootCmd.AddCommand(cmd)
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <path> [--capacity SIZE]",
		Short: "Create a new datastore",
		Long: `The create command initializes a brand new datastore at path, wiping
anything already there.

Example:
  metallctl create /data/mystore --capacity 1073741824`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
	return cmd
}

func runCreate(args []string) error {
	path := args[0]

	var opts []manager.Option
	if createCapacity > 0 {
		opts = append(opts, manager.WithCapacity(createCapacity))
	}
	if createChunkSize > 0 {
		opts = append(opts, manager.WithChunkSize(createChunkSize))
	}

	printVerbose("Creating datastore: %s\n", path)

	m, err := manager.Create(path, opts...)
	if err != nil {
		return fmt.Errorf("failed to create datastore: %w", err)
	}
	defer m.Close()

	if jsonOut {
		return printJSON(map[string]any{
			"path":       path,
			"uuid":       m.GetUUID(),
			"chunk_size": m.ChunkSize(),
		})
	}

	printInfo("Created datastore at %s\n", path)
	printInfo("  UUID: %s\n", m.GetUUID())
	printInfo("  Chunk size: %d bytes\n", m.ChunkSize())
	return nil
}
