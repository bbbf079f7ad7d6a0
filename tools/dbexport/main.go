// Package main provides a CLI tool for migrating annotation data from a
// local SQLite database to a shared MySQL or PostgreSQL deployment.
// Editors start out against a private screw.db file; once a team sets up a
// shared server this tool pushes the accumulated notes into it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set via ldflags during build)
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbexport",
	Short: "Export annotation data from SQLite to a shared database",
	Long: `A tool for migrating annotation store data from a local SQLite file
to a shared MySQL or PostgreSQL database.

The migration copies projects, notes and replies in dependency order,
preserving original identifiers. Inserts use ON CONFLICT DO NOTHING so the
tool can be re-run safely after a partial migration.`,
	RunE: runExport,
}

var cfg Config

func init() {
	// Source database flags
	rootCmd.Flags().StringVar(&cfg.SQLitePath, "sqlite-path", "", "Path to source SQLite database file")

	// Target database flags
	rootCmd.Flags().StringVar(&cfg.TargetURL, "target-url", "", "Target database URL (mysql:// or postgres://)")

	// Migration options
	rootCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 1000, "Number of records per batch")
	rootCmd.Flags().BoolVar(&cfg.DropTables, "drop-tables", false, "Drop annotation tables in the target before migration (fresh start)")
	rootCmd.Flags().BoolVar(&cfg.Clean, "clean", false, "Delete rows from target tables before migration (keeps table structure)")
	rootCmd.Flags().BoolVar(&cfg.AutoMigrate, "auto-migrate", true, "Create tables in target database before migration (use --auto-migrate=false to disable)")
	rootCmd.Flags().BoolVar(&cfg.SkipVerify, "skip-verify", false, "Skip post-migration verification")
	rootCmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose output")

	// Config file fallback
	rootCmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "Path to screw.yaml (target URL fallback)")

	// Version flag
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

func runExport(cmd *cobra.Command, args []string) error {
	// Handle version flag
	if v, _ := cmd.Flags().GetBool("version"); v {
		fmt.Printf("dbexport version %s\n", version)
		return nil
	}

	// Load and validate configuration
	if err := cfg.Load(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if cfg.Verbose {
		fmt.Printf("Source: %s\n", cfg.SQLitePath)
		fmt.Printf("Target: %s\n", cfg.SanitizedTargetURL())
		fmt.Printf("Batch size: %d\n", cfg.BatchSize)
		fmt.Printf("Clean mode: %v\n", cfg.Clean)
	}

	// Create and run migrator
	migrator, err := NewMigrator(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer migrator.Close()

	// Run migration
	stats, err := migrator.Run()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Print summary
	stats.Print()

	// Run verification unless skipped
	if !cfg.SkipVerify {
		fmt.Println("\n--- Verification ---")
		verifier := NewVerifier(migrator.sourceDB, migrator.targetDB)
		if err := verifier.Verify(); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Println("Verification passed!")
	}

	return nil
}
