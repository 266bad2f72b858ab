package main

import (
	"os"

	"github.com/ThatCatDev/tanrenai/estimator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.PrintError(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
