package server

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewServerAddCmd() *cobra.Command {
	token, use := "", false
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a tracking server",
		Long:  "Add a tracking server",
		Example: `
	# Add the default server
	trackx server add default https://tracker.example.com --token <token>

	# Add a server and select it
	trackx server add staging https://staging.example.com --use
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("server add requires two arguments")
			}
			if err := DefaultServerManager.Set(ServerDetails{Name: args[0], URL: args[1], Token: token}); err != nil {
				return err
			}
			if use {
				return DefaultServerManager.Use(args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", token, "api token")
	cmd.Flags().BoolVar(&use, "use", use, "select the server as current")
	return cmd
}

func NewServerUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use",
		Short: "Select the current tracking server",
		Example: `
	trackx server use staging`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return CompleteServer(toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("server use requires one argument")
			}
			return DefaultServerManager.Use(args[0])
		},
	}
	return cmd
}
