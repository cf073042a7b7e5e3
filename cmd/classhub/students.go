package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Work with the student directory",
	}
	cmd.AddCommand(newStudentsListCmd())
	return cmd
}

func newStudentsListCmd() *cobra.Command {
	var (
		configPath string
		outputFmt  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all students",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeFn, err := openStore(cfg, entity.RoleAdmin)
			if err != nil {
				return err
			}
			defer closeFn()

			students, err := store.Students(cmd.Context())
			if err != nil {
				return err
			}

			if outputFmt == "json" {
				return json.NewEncoder(os.Stdout).Encode(students)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tGRADE\tSTATUS")
			for _, s := range students {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.FullName, s.Email, orDash(s.Grade), orDash(string(s.Status)))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
