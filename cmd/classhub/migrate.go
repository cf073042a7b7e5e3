package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classhub/classhub/internal/platform"
	"github.com/classhub/classhub/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := sql.Open("postgres", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := platform.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Println("migrations up to date")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	return cmd
}
