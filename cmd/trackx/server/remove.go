package server

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewServerRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a tracking server",
		Long:  "Remove a tracking server",
		Example: `
		trackx server remove default`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return CompleteServer(toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("server remove requires at least one argument")
			}
			for _, name := range args {
				if err := DefaultServerManager.Remove(name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
