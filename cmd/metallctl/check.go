package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thifhi/metall/manager"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Check a datastore's consistency",
		Long: `The check command reports whether the properly_closed marker is
present. If the store is consistent and can be opened read-only, it
additionally scans the chunk directory and reports whether every chunk is
free (all memory deallocated).

Example:
  metallctl check /data/mystore`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
	return cmd
}

func runCheck(args []string) error {
	path := args[0]

	consistent := manager.Consistent(path)
	report := map[string]any{"path": path, "consistent": consistent}

	if consistent {
		m, err := manager.OpenReadOnly(path)
		if err != nil {
			report["open_error"] = err.Error()
		} else {
			defer m.Close()
			report["all_memory_deallocated"] = m.AllMemoryDeallocated()
		}
	}

	if jsonOut {
		return printJSON(report)
	}

	if !consistent {
		return fmt.Errorf("datastore at %s is inconsistent (missing marker)", path)
	}
	printInfo("Datastore %s is consistent.\n", path)
	if v, ok := report["all_memory_deallocated"]; ok {
		printInfo("  All memory deallocated: %v\n", v)
	}
	return nil
}
