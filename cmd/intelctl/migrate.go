package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"telegram-intel/internal/app"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Схема базы данных обновлена")
			return nil
		},
	})
}
