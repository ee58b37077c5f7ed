// Package cmd implements the store's command-line entry points: serve
// (the wire-contract server), mount (read-only filesystem browsing via
// NFS), and inspect (schema declaration tools).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var schemaPath string

var rootCmd = &cobra.Command{
	Use:     "pathstore",
	Short:   "pathstore: a schema-typed document store with live subscriptions",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "path to the schema HCL file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pathstore version %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

// Execute runs the root command, exiting the process with a non-zero
// status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
