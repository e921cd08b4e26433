package main

import (
	"os"

	"ai-trading-challenge/cmd/executor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
