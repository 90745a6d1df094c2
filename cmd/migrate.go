package cmd

import (
	"errors"
	"fmt"

	"praxis-billing/database"
	"praxis-billing/logger"
	"praxis-billing/models"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the public tables and clinic schemas",
	Long: `Creates or updates the public tables (users, clinics, contact persons).
With --schema only that clinic schema is migrated, with --all every
registered clinic.`,
	Example: `  praxis-billing migrate --all
  praxis-billing migrate --schema praxis_muster`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var (
	migrateSchema string
	migrateAll    bool
)

func init() {
	migrateCmd.Flags().StringVar(&migrateSchema, "schema", "", "clinic schema to migrate")
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "migrate every registered clinic schema")
	migrateCmd.MarkFlagsMutuallyExclusive("schema", "all")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")

	if err := database.Connect(cfg); err != nil {
		return err
	}
	if err := database.AutoMigrate(); err != nil {
		return fmt.Errorf("public automigrate: %w", err)
	}
	log.Info().Msg("public tables migrated")

	var schemas []string
	switch {
	case migrateSchema != "":
		schemas = []string{migrateSchema}
	case migrateAll:
		if err := database.DB.Model(&models.Clinic{}).Pluck("schema_name", &schemas).Error; err != nil {
			return err
		}
	}

	var errs []error
	for _, s := range schemas {
		if err := database.MigrateTenantSchema(s); err != nil {
			log.Error().Err(err).Str("schema", s).Msg("tenant migration failed")
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		log.Info().Str("schema", s).Msg("tenant schema migrated")
	}
	return errors.Join(errs...)
}
