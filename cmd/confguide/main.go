package main

import (
	"os"

	"github.com/fatih/color"

	"confguide/internal/cli"
	appLog "confguide/internal/log"
)

var version = "0.1.0-dev"

func main() {
	if err := cli.Execute(version); err != nil {
		appLog.Debug("command failed", "error", err.Error())
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
