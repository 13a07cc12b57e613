package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// dataDir holds the database, the user config and the run lock.
	dataDir string
	// defaultCfgPath is copied into dataDir on first start.
	defaultCfgPath string
	debug          bool

	rootCmd = &cobra.Command{
		Use:           "autoapply",
		Short:         "Find job offers on sites it has never seen and prepare applications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so API keys and passwords are visible to config.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	def := os.Getenv("AUTOAPPLY_DATA_DIR")
	if def == "" {
		def = "."
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", def, "directory for the database, config and lock file")
	rootCmd.PersistentFlags().StringVar(&defaultCfgPath, "default-config", "config/config.yml", "bundled config copied on first start")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(secretsCommand())
}
