package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"kubegems.io/trackx/pkg/dataset"
	"kubegems.io/trackx/pkg/storage"
)

func NewDatasetCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "dataset management",
	}
	cmd.AddCommand(NewDatasetListCmd(options))
	cmd.AddCommand(NewDatasetGetCmd(options))
	cmd.AddCommand(NewDatasetPackCmd())
	return cmd
}

func NewDatasetListCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "list <project>",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			cli, err := options.Client()
			if err != nil {
				return err
			}
			list, err := cli.ListDatasets(ctx, args[0])
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Name", "Version", "Tags", "Files", "Size", "Created"})
			for _, ds := range list {
				t.AppendRow(table.Row{
					ds.ID, ds.Name, ds.Version, strings.Join(ds.Tags, ","),
					len(ds.Files), formatSize(ds.Size()), ds.Created.Format(time.RFC3339),
				})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func NewDatasetGetCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "get <project> <name>",
		Example: `
  # Download the latest version of a dataset and print its local path
  trackx dataset get mnist train
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("project and name are required")
			}
			cli, err := options.Client()
			if err != nil {
				return err
			}
			m, err := openDatasetManager(ctx, options, cli)
			if err != nil {
				return err
			}
			defer m.Close()

			path, err := m.GetLocalCopy(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	return cmd
}

// openDatasetManager keeps datasets under <cache-dir>/datasets next to <cache-dir>/objects.
func openDatasetManager(ctx context.Context, options *GlobalOptions, getter dataset.Getter) (*dataset.Manager, error) {
	objects, err := storage.NewManager(ctx, options.S3, filepath.Join(options.CacheDir, "objects"))
	if err != nil {
		return nil, err
	}
	return dataset.Open(options.CacheDir, getter, objects)
}

func NewDatasetPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pack",
		Short:        "pack <dir> <file.tar.gz>",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("dir and destination file are required")
			}
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			dgst, err := dataset.Pack(ctx, args[0], f)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", dgst, dataset.MediaTypeDatasetArchive)
			return nil
		},
	}
	return cmd
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
