package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

func newAnnouncementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "announcements",
		Short: "Work with announcements",
	}
	cmd.AddCommand(newAnnouncementsListCmd())
	return cmd
}

func newAnnouncementsListCmd() *cobra.Command {
	var (
		configPath string
		role       string
		outputFmt  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List announcements",
		Long:  `Lists announcements visible to the given role; students only see published ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, closeFn, err := openStore(cfg, entity.Role(role))
			if err != nil {
				return err
			}
			defer closeFn()

			anns, err := store.Announcements(cmd.Context())
			if err != nil {
				return err
			}

			if outputFmt == "json" {
				return json.NewEncoder(os.Stdout).Encode(anns)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPUBLISHED\tCREATED")
			for _, a := range anns {
				created := "-"
				if !a.CreatedAt.IsZero() {
					created = a.CreatedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
					a.ID, a.Title, orDash(string(a.Category)), a.Published, created)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&role, "role", string(entity.RoleAdmin), "Caller role: admin, teacher or student")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}
