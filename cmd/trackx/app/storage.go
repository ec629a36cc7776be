package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kubegems.io/trackx/pkg/storage"
)

func NewStorageCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "object storage helpers",
	}
	cmd.AddCommand(NewStorageListCmd(options))
	cmd.AddCommand(NewStorageDownloadCmd(options))
	return cmd
}

func NewStorageListCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "list s3://<bucket>/<prefix>",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			bucket, prefix, err := storage.ParseURL(args[0])
			if err != nil {
				return err
			}
			m, err := storage.NewManager(ctx, options.S3, filepath.Join(options.CacheDir, "objects"))
			if err != nil {
				return err
			}
			objects, err := m.ListObjects(ctx, bucket, prefix)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Key", "Size"})
			for _, o := range objects {
				t.AppendRow(table.Row{o.Key, formatSize(o.Size)})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func NewStorageDownloadCmd(options *GlobalOptions) *cobra.Command {
	concurrency := storage.DefaultConcurrency
	cmd := &cobra.Command{
		Use:   "download",
		Short: "download s3://<bucket>/<prefix>",
		Example: `
  trackx storage download s3://models/keras_mnist/ --s3-url http://minio:9000
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			m, err := storage.NewManager(ctx, options.S3, filepath.Join(options.CacheDir, "objects"))
			if err != nil {
				return err
			}
			m.Concurrency = concurrency
			dir, err := m.DownloadFolder(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(dir)
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", concurrency, "parallel downloads")
	return cmd
}
