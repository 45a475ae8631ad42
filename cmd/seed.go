package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FAIRDataPipeline/data-registry/dao"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/db"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the example pipeline into the registry database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.InitDB(); err != nil {
			return fmt.Errorf("init database failed: %w", err)
		}
		defer db.Close()

		summary, err := dao.SeedExampleData(cmd.Context(), db.DB)
		if errors.Is(err, dao.ErrAlreadyExists) {
			fmt.Fprintln(cmd.ErrOrStderr(), "example data already present")
			return nil
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
