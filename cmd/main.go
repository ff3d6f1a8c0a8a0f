package main

import (
	"os"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
