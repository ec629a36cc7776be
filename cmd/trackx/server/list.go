package server

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func NewServerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list tracking servers",
		Long:  "List tracking servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"", "Name", "URL", "Token"})
			servers, current := DefaultServerManager.List()
			for _, item := range servers {
				mark, token := "", ""
				if item.Name == current {
					mark = "*"
				}
				if item.Token != "" {
					token = "********"
				}
				t.AppendRow(table.Row{mark, item.Name, item.URL, token})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func CompleteServer(toComplete string) ([]string, cobra.ShellCompDirective) {
	names := []string{}
	servers, _ := DefaultServerManager.List()
	for _, item := range servers {
		if strings.HasPrefix(item.Name, toComplete) {
			names = append(names, item.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
