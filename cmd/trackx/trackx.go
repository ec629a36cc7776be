package main

import (
	"crypto/tls"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"kubegems.io/trackx/cmd/trackx/app"
)

const ErrExitCode = 1

func main() {
	if err := NewTrackxCmd().Execute(); err != nil {
		os.Exit(ErrExitCode)
	}
}

func NewTrackxCmd() *cobra.Command {
	insecureSkipVerify := false
	cmd := app.NewTrackxCmd()
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if insecureSkipVerify {
			http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
	}
	cmd.PersistentFlags().BoolVarP(&insecureSkipVerify, "insecure", "", insecureSkipVerify, "tls insecure skip verify")
	return cmd
}
