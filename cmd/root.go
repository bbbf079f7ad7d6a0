package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/screwnvim/screw-server/internal/conf"
)

// RootCommand creates and returns the root command. Global flags are shared
// by every subcommand; running the binary with no subcommand starts the
// server, so a bare `screw-server` behaves like `screw-server serve`.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "screw-server",
		Short:   "Shared annotation server for screw.nvim",
		Long:    "screw-server stores code review notes for screw.nvim and serves them over an HTTP JSON API so a team can share annotations across editors.",
		Version: settings.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(serveCommand(settings))

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
// Defaults come from viper so config file and environment values show up
// in --help and survive when the flag is not passed.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Server.Host, "host", viper.GetString("server.host"), "Address to bind the HTTP server to")
	rootCmd.PersistentFlags().IntVarP(&settings.Server.Port, "port", "p", viper.GetInt("server.port"), "Port to bind the HTTP server to")
	rootCmd.PersistentFlags().StringVar(&settings.Server.Name, "name", viper.GetString("server.name"), "Server name reported by the health endpoint")
	rootCmd.PersistentFlags().StringVar(&settings.Database.URL, "database", viper.GetString("database.url"), "Database URL (SQLite path, mysql:// or postgres:// URL)")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
