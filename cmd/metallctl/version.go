package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	toolVersion = "dev"
	commit      = "none"
	date        = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("metallctl %s\n", toolVersion)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
