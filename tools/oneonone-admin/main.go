package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/oneonone/libs/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return newRootCmd().Execute()
}
