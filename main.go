package main

import (
	"os"

	"github.com/iljarotar/threshold-scaler/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
