package main

import (
	"fmt"
	"os"

	"github.com/screwnvim/screw-server/cmd"
	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/logging"
)

// version is set at build time: -ldflags "-X main.version=v1.2.3"
var version = "dev"

func main() {
	// Loggers must exist before anything can report a config failure.
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	settings.Version = version

	// Init sets the JSON handler as default, switch to the human-readable
	// one unless a log shipper is configured to consume JSON.
	if settings.Log.Format != "json" {
		logging.UseTextDefault()
	}
	logging.SetLevel(logging.ParseLevel(settings.Log.Level))

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
