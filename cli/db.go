package cli

import (
	"fmt"

	"github.com/mbolis/dynamic-forms/config"
	"github.com/mbolis/dynamic-forms/database"
	"github.com/spf13/cobra"
)

func NewMigrate(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

func NewRekey(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Rewrite label keyed answers of stored records to field ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := database.RekeyResponses(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records rekeyed\n", n)
			return nil
		},
	}
}
