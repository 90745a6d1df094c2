package cmd

import (
	"errors"
	"fmt"
	"os"

	"praxis-billing/database"
	"praxis-billing/logger"
	"praxis-billing/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var tariffsCmd = &cobra.Command{
	Use:   "tariffs",
	Short: "Manage clinic tariff catalogs",
}

var tariffsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a YAML tariff catalog into a clinic schema",
	Long: `Reads a YAML file of the form

  tariffs:
    - code: "00.0010"
      description: Konsultation, erste 5 Min.
      base_price: 19.08

and upserts every position by code. The whole file is checked before
anything is written.`,
	Example: `  praxis-billing tariffs import --schema praxis_muster --file tardoc.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runTariffsImport,
}

var (
	importSchema string
	importFile   string
)

func init() {
	tariffsImportCmd.Flags().StringVar(&importSchema, "schema", "", "clinic schema (required)")
	tariffsImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "YAML catalog file (required)")
	_ = tariffsImportCmd.MarkFlagRequired("schema")
	_ = tariffsImportCmd.MarkFlagRequired("file")

	tariffsCmd.AddCommand(tariffsImportCmd)
	rootCmd.AddCommand(tariffsCmd)
}

func runTariffsImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("tariffs")

	if !database.ValidSchema(importSchema) {
		return fmt.Errorf("invalid schema name %q", importSchema)
	}

	f, err := os.Open(importFile)
	if err != nil {
		return err
	}
	defer f.Close()

	tariffs, err := services.ParseCatalog(f)
	if err != nil {
		return err
	}
	if len(tariffs) == 0 {
		return errors.New("catalog contains no tariffs")
	}

	if err := database.Connect(cfg); err != nil {
		return err
	}

	var n int
	err = database.WithTenant(cmd.Context(), importSchema, func(tx *gorm.DB) error {
		var err error
		n, err = services.ImportCatalog(tx, tariffs)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("schema", importSchema).Int("tariffs", n).Msg("catalog imported")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d tariffs into %s\n", n, importSchema)
	return nil
}
