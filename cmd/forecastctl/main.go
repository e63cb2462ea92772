package main

import (
	"os"

	"github.com/forecast-tournament/forecast/cmd/forecastctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.DefaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
