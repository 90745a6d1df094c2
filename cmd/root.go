package cmd

import (
	"fmt"
	"os"

	"praxis-billing/config"
	"praxis-billing/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "praxis-billing",
	Short: "Clinic billing backend with Swiss QR references and installment plans",
	Long: `praxis-billing serves the multi-clinic billing REST API and offers a few
maintenance commands: tenant schema migrations, QR reference computation and
tariff catalog imports.

Configuration is read from the environment and an optional .env file
(DATABASE_URL, JWT_SECRET_KEY, REDIS_URL, SMTP_*, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Setup(c.LoggerConfig()); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		cfg = c
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithComponent("cmd").Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
