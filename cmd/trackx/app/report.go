package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"kubegems.io/trackx/pkg/mnist"
	"kubegems.io/trackx/pkg/training"
)

func NewTaskReportCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "report metrics and debug samples of a task",
	}
	cmd.AddCommand(NewTaskReportScalarCmd(options))
	cmd.AddCommand(NewTaskReportSampleCmd(options))
	return cmd
}

func NewTaskReportScalarCmd(options *GlobalOptions) *cobra.Command {
	epoch := 0
	cmd := &cobra.Command{
		Use:   "scalar",
		Short: "scalar <task-id> <name> <value>",
		Example: `
  trackx task report scalar 5f0c accuracy 0.98 --epoch 3
  trackx task report scalar 5f0c val_loss 0.12 --epoch 3
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 3 {
				return errors.New("task id, name and value are required")
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			cli, err := options.Client()
			if err != nil {
				return err
			}
			reporter := training.ScalarReporter{Sink: cli, TaskID: args[0]}
			return reporter.OnEpochEnd(ctx, epoch, training.Logs{args[1]: value})
		},
	}
	cmd.Flags().IntVar(&epoch, "epoch", epoch, "iteration of the reported value")
	return cmd
}

func NewTaskReportSampleCmd(options *GlobalOptions) *cobra.Command {
	epoch, index := 0, 0
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "sample <task-id> <images.idx[.gz]>",
		Example: `
  trackx task report sample 5f0c t10k-images-idx3-ubyte.gz --index 7 --epoch 3
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) != 2 {
				return errors.New("task id and image file are required")
			}
			images, err := mnist.OpenImages(args[1])
			if err != nil {
				return err
			}
			if index < 0 || index >= len(images.Pixels) {
				return fmt.Errorf("index %d out of range, file has %d images", index, len(images.Pixels))
			}
			cli, err := options.Client()
			if err != nil {
				return err
			}
			reporter := training.ImageReporter{
				Sink:   cli,
				TaskID: args[0],
				Sample: images.Normalize()[index],
				Rows:   images.Rows,
				Cols:   images.Cols,
			}
			return reporter.OnEpochEnd(ctx, epoch, nil)
		},
	}
	cmd.Flags().IntVar(&epoch, "epoch", epoch, "iteration of the reported image")
	cmd.Flags().IntVar(&index, "index", index, "index of the image in the file")
	return cmd
}
