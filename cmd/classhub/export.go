package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classhub/classhub/internal/export"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

func newExportCmd() *cobra.Command {
	var (
		configPath string
		kindName   string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entities as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFromFlag(kindName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeFn, err := openStore(cfg, entity.RoleAdmin)
			if err != nil {
				return err
			}
			defer closeFn()

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}

			if err := export.CSV(cmd.Context(), store, kind, out); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&kindName, "kind", string(entity.KindStudent), "Entity kind to export")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default: stdout)")
	return cmd
}
