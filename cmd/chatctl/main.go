// Package main provides the entry point for the chatctl CLI.
package main

import (
	"os"

	"github.com/shubhsaxena/chat-search/cmd/chatctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
