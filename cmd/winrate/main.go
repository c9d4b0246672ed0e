package main

import (
	"os"

	"github.com/wonny/winrate/cmd/winrate/commands"
)

// main is the entry point for the win-rate CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/winrate [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
