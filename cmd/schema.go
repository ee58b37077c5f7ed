package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/pathstore/schema"
)

func loadSchema(path string) (*schema.Node, error) {
	if path == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	root, err := schema.ParseHCL(src, path)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return root, nil
}
