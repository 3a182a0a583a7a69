package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"statutelink/internal/config"
	"statutelink/pkg/storage/archive"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage the raw-source corpus archive",
	}
	cmd.AddCommand(archivePushCmd(), archivePullCmd(), archiveListCmd())
	return cmd
}

func archiveClient(ctx context.Context) (*archive.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return archive.New(ctx, &archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		Bucket:    cfg.Archive.Bucket,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
	})
}

func archivePushCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "push [files...]",
		Short: "Upload raw sources to the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := archiveClient(ctx)
			if err != nil {
				return err
			}

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				key := filepath.Join(prefix, filepath.Base(path))
				err = client.Upload(ctx, key, f, "")
				f.Close()
				if err != nil {
					return err
				}
				fmt.Printf("pushed %s\n", key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "sources", "key prefix inside the bucket")
	return cmd
}

func archivePullCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "pull [keys...]",
		Short: "Download raw sources from the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := archiveClient(ctx)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			for _, key := range args {
				body, err := client.Download(ctx, key)
				if err != nil {
					return err
				}
				dst := filepath.Join(outDir, filepath.Base(key))
				f, err := os.Create(dst)
				if err != nil {
					body.Close()
					return err
				}
				if _, err := f.ReadFrom(body); err != nil {
					f.Close()
					body.Close()
					return err
				}
				f.Close()
				body.Close()
				fmt.Printf("pulled %s -> %s\n", key, dst)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}

func archiveListCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List archived source keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := archiveClient(ctx)
			if err != nil {
				return err
			}
			keys, err := client.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix filter")
	return cmd
}
