package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/internal/storage"
	"github.com/classhub/classhub/internal/upload"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

func newUploadCmd() *cobra.Command {
	var (
		configPath string
		bucketName string
		folder     string
		kindName   string
		entityID   string
		dataJSON   string
	)

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files and attach them to an entity",
		Long: `Validates every file against the bucket's constraints, uploads them in
order, then creates the entity (or updates it when --id is given) with
the resulting attachments. A validation failure rejects the whole batch
before anything is transferred.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFromFlag(kindName)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			bucket, ok := cfg.Bucket(bucketName)
			if !ok {
				return fmt.Errorf("bucket %q is not configured", bucketName)
			}

			payload := normalize.Doc{}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &payload); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}

			adapter, err := storage.NewAdapter(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			store, closeFn, err := openStore(cfg, entity.RoleAdmin)
			if err != nil {
				return err
			}
			defer closeFn()

			coord := upload.New(adapter, store, bucket, folder)
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer f.Close()
				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("stat %s: %w", path, err)
				}
				coord.Add(storage.File{
					Name:        filepath.Base(path),
					Size:        info.Size(),
					ContentType: contentTypeFor(path),
					Content:     f,
				})
			}

			doc, err := coord.Run(cmd.Context(), kind, entityID, payload)
			if err != nil {
				printSnapshots(coord)
				return err
			}

			printSnapshots(coord)
			fmt.Printf("entity %v saved with %d attachment(s)\n", doc["id"], len(args))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&bucketName, "bucket", config.BucketAttachments, "Target bucket")
	cmd.Flags().StringVar(&folder, "folder", "", "Key prefix inside the bucket")
	cmd.Flags().StringVar(&kindName, "kind", string(entity.KindAnnouncement), "Entity kind to attach to")
	cmd.Flags().StringVar(&entityID, "id", "", "Existing entity to update (default: create)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Entity fields as JSON, e.g. '{\"title\":\"Trip\",\"body\":\"...\"}'")
	return cmd
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func printSnapshots(coord *upload.Coordinator) {
	for _, s := range coord.Snapshots() {
		line := fmt.Sprintf("%-10s %3d%%  %s", s.State, s.Progress, s.Name)
		if s.Error != "" {
			line += "  (" + s.Error + ")"
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
