package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pathstore/schema"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "parse a schema file and print it back in canonical form",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := loadSchema(schemaPath)
		if err != nil {
			return err
		}
		if root.Kind() != schema.KindDocument {
			return fmt.Errorf("inspect: schema root must be a document")
		}
		_, err = os.Stdout.Write(schema.Dump(root))
		return err
	},
}
