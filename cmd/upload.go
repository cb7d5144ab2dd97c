package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eduardolzevallos/backup-websites/internal/upload"
)

// newUploadCmd creates the 'upload' subcommand, a one-shot archive of
// an already-mirrored tree. Useful for re-uploading after a partial
// failure without re-crawling.
func newUploadCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "upload DIR",
		Short: "Uploads a mirrored tree to the archive store",
		Long: `Walks DIR and uploads every file to the configured archive store
under the given namespace, preserving the tree's relative layout.`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			logger := appInstance.Logger()

			uploader := upload.New(appInstance.Store(), upload.Config{
				Prefix:    cfg.Storage.Prefix,
				SkipNames: []string{cfg.Watch.Marker},
			}, logger)

			summary, err := uploader.UploadTree(cmd.Context(), args[0], namespace)
			if err != nil {
				return fmt.Errorf("upload %s: %w", args[0], err)
			}

			logger.Info("upload finished",
				zap.String("namespace", summary.Namespace),
				zap.Int("uploaded", summary.Uploaded),
				zap.Int64("bytes", summary.Bytes))
			cmd.Printf("uploaded %d files (%d bytes) under %s\n",
				summary.Uploaded, summary.Bytes, summary.Namespace)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "remote namespace for the uploaded tree (required)")
	_ = cmd.MarkFlagRequired("namespace")

	return cmd
}
