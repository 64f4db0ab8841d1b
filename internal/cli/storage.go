package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/n2edm/n2read/internal/config"
	"github.com/n2edm/n2read/internal/storage"
)

// openStore creates the archive configured in cfg.
func openStore(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "s3":
		s3cfg := storage.DefaultS3Config()
		s3cfg.Bucket = cfg.Storage.S3.Bucket
		s3cfg.Region = cfg.Storage.S3.Region
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.Prefix = cfg.Storage.S3.Prefix
		s3cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		return storage.NewS3Storage(ctx, s3cfg)
	case "local":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return storage.NewLocalStorage(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func newStageCommand(e *env) *cobra.Command {
	var subsystem string
	cmd := &cobra.Command{
		Use:   "stage <run>",
		Short: "Download an archived run into the data root",
		Long: `Download the header and data files of a run from the archive into the data
root, skipping files already present with the archived size.

Examples:
  n2edm stage 1234
  n2edm stage 1234 --subsystem coils`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), e.cfg)
			if err != nil {
				return err
			}

			stager := storage.NewStager(store, e.cfg.DataRoot, e.cfg.LayoutValue(), e.cfg.Storage.Concurrency)
			res, err := stager.StageRun(cmd.Context(), run, subsystem)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %d: %d files staged, %d downloaded (%d bytes), %d already present\n",
					res.Run, len(res.Staged), res.Downloads, res.Bytes, res.CacheHits)
				for key, ferr := range res.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", key, ferr)
				}
			}
			if err != nil {
				return err
			}
			e.scanner.Cache.Reset()
			return nil
		},
	}
	cmd.Flags().StringVar(&subsystem, "subsystem", "", "stage only this subsystem")
	return cmd
}

func newPublishCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <run>",
		Short: "Upload a run from the data root to the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), e.cfg)
			if err != nil {
				return err
			}

			pub := storage.NewPublisher(store, e.cfg.DataRoot, e.cfg.LayoutValue(), e.cfg.Storage.Concurrency)
			res, err := pub.PublishRun(cmd.Context(), run)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %d: %d files uploaded (%d bytes)\n", res.Run, len(res.Uploaded), res.Bytes)
			return nil
		},
	}
}
