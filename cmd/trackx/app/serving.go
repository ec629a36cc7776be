package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"kubegems.io/trackx/pkg/serving"
)

func NewServingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serving",
		Short: "serving descriptor helpers",
	}
	cmd.AddCommand(NewServingEmitCmd())
	return cmd
}

func NewServingEmitCmd() *cobra.Command {
	platform := ""
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "emit <signature> [config.pbtxt]",
		Example: `
  trackx serving emit signature.yaml
  trackx serving emit signature.yaml serving_model/config.pbtxt --platform onnxruntime_onnx
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			dest := serving.ConfigFileName
			if len(args) > 1 {
				dest = args[1]
			}
			return EmitServingConfig(args[0], dest, serving.Platform(platform))
		},
	}
	cmd.Flags().StringVar(&platform, "platform", platform, "override the serving platform of the signature")
	return cmd
}

func EmitServingConfig(signaturefile, dest string, platform serving.Platform) error {
	sig, err := serving.LoadSignature(signaturefile)
	if err != nil {
		return err
	}
	if platform != "" {
		sig.Platform = platform
	}
	spec, err := serving.NewModelIOSpec(sig)
	if err != nil {
		return err
	}
	if err := serving.Emit(spec, dest); err != nil {
		return err
	}
	fmt.Printf("Serving config written to %s\n", dest)
	return nil
}
