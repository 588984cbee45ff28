package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "payments-router",
	Short: "Routes checkout payments across a pool of gateway accounts",
	Long: "payments-router picks a gateway account for every checkout, fails over when an account hits " +
		"its daily limit, and keeps shop orders in sync with the gateway through webhooks, polling and scheduled jobs.",
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before .env (values already set in the environment win)")
}

// loadEnvFile applies --env-file ahead of the default .env lookup done by config.Load.
func loadEnvFile(_ *cobra.Command, _ []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
