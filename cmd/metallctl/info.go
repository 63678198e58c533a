package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Report a datastore's identity, version, and consistency",
		Long: `The info command reports a datastore's UUID, format version, and
consistency marker without reserving any VM, reading the uuid and version
files directly. If the store is consistent, it is additionally opened
read-only to report its chunk size, whether all memory is deallocated, and
the number of named, unique, and anonymous entries.

Example:
  metallctl info /data/mystore
  metallctl info /data/mystore --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

func runInfo(args []string) error {
	path := args[0]

	printVerbose("Reading datastore attributes: %s\n", path)

	uuidStr, err := manager.GetUUID(path)
	if err != nil {
		return fmt.Errorf("failed to read uuid: %w", err)
	}
	version, err := manager.GetVersion(path)
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	consistent := manager.Consistent(path)

	report := map[string]any{
		"path":       path,
		"uuid":       uuidStr,
		"version":    uint32(version),
		"consistent": consistent,
	}

	if consistent {
		m, err := manager.OpenReadOnly(path)
		if err == nil {
			defer m.Close()
			report["chunk_size"] = m.ChunkSize()
			report["all_memory_deallocated"] = m.AllMemoryDeallocated()
			report["named_count"] = countSeq(m.ListNamed())
			report["unique_count"] = countSeq(m.ListUnique())
			report["anonymous_count"] = countSeq(m.ListAnonymous())
		} else {
			printVerbose("Warning: consistent but failed to open read-only: %v\n", err)
		}
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("Datastore Information:\n")
	printInfo("  Path: %s\n", path)
	printInfo("  UUID: %s\n", uuidStr)
	printInfo("  Version: %d\n", version)
	printInfo("  Consistent: %v\n", consistent)
	if v, ok := report["chunk_size"]; ok {
		printInfo("  Chunk size: %d bytes\n", v)
		printInfo("  All memory deallocated: %v\n", report["all_memory_deallocated"])
		printInfo("  Named objects: %d\n", report["named_count"])
		printInfo("  Unique objects: %d\n", report["unique_count"])
		printInfo("  Anonymous objects: %d\n", report["anonymous_count"])
	}
	return nil
}

func countSeq[T any](seq func(func(T) bool)) int {
	n := 0
	seq(func(T) bool { n++; return true })
	return n
}
