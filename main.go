package main

import "github.com/agentic-research/pathstore/cmd"

func main() {
	cmd.Execute()
}
