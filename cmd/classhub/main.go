// Package main provides the classhub CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "classhub",
		Short: "Backend tooling for the Classhub school CMS",
		Long: `Classhub manages students, announcements and documents against either
the Postgres backend or the hosted REST API, and uploads files to
configured blob storage.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newStudentsCmd(),
		newAnnouncementsCmd(),
		newExportCmd(),
		newUploadCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
