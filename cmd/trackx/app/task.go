package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"k8s.io/utils/pointer"
	"kubegems.io/trackx/pkg/pipeline"
	"kubegems.io/trackx/pkg/tracker"
	"kubegems.io/trackx/pkg/types"
	"sigs.k8s.io/yaml"
)

func NewTaskCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "remote task management",
	}
	cmd.AddCommand(NewTaskCreateEnqueueCmd(options))
	cmd.AddCommand(NewTaskGetCmd(options))
	cmd.AddCommand(NewTaskListCmd(options))
	cmd.AddCommand(NewTaskWaitCmd(options))
	cmd.AddCommand(NewTaskExecuteRemotelyCmd(options))
	cmd.AddCommand(NewTaskReportCmd(options))
	return cmd
}

func NewTaskCreateEnqueueCmd(options *GlobalOptions) *cobra.Command {
	opts := pipeline.DefaultControllerOptions()
	params := pipeline.ControllerParameters{}
	controlZone := ""
	cmd := &cobra.Command{
		Use:   "create-enqueue",
		Short: "create a controller task and enqueue it",
		Example: `
  trackx task create-enqueue --building-id 9 --building-name MTL-CLEARML-911 \
    --application-id 1 --application-name dummy_test --control-zone dummy_control --client client_1
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			cli, err := options.Client()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("control-zone") {
				params.ControlZoneID = pointer.String(controlZone)
			}
			id, err := pipeline.CreateEnqueueController(ctx, cli, opts, params)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&params.BuildingID, "building-id", params.BuildingID, "building id")
	flags.StringVar(&params.BuildingName, "building-name", params.BuildingName, "building name")
	flags.StringVar(&params.ApplicationID, "application-id", params.ApplicationID, "application id")
	flags.StringVar(&params.ApplicationName, "application-name", params.ApplicationName, "application name")
	flags.StringVar(&controlZone, "control-zone", controlZone, "control zone id")
	flags.StringVar(&params.Client, "client", params.Client, "client name")
	flags.StringVar(&opts.Project, "project", opts.Project, "project of the controller task")
	flags.StringVar(&opts.TaskName, "task-name", opts.TaskName, "name of the controller task")
	flags.StringVar(&opts.Repo, "repo", opts.Repo, "repository of the controller script")
	flags.StringVar(&opts.Branch, "branch", opts.Branch, "branch of the repository")
	flags.StringVar(&opts.Script, "script", opts.Script, "entry point script")
	flags.StringVar(&opts.RequirementsFile, "requirements", opts.RequirementsFile, "requirements file")
	flags.StringVar(&opts.Docker, "docker", opts.Docker, "docker image to execute in")
	flags.StringVar(&opts.Queue, "queue", opts.Queue, "queue to enqueue into")
	flags.BoolVar(&opts.AddTaskInitCall, "add-task-init-call", opts.AddTaskInitCall, "inject the tracker init call into the script")
	return cmd
}

func NewTaskGetCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "get",
		Short:        "get <task-id>",
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
			task, err := cli.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			return printTask(task)
		},
	}
	return cmd
}

func printTask(task *types.Task) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Section", "Name", "Value"})
	sections := make(map[string]string, len(task.Parameters))
	for name := range task.Parameters {
		sections[name] = ""
	}
	for _, section := range tracker.SortedParameterKeys(sections) {
		values := task.Parameters[section]
		for _, k := range tracker.SortedParameterKeys(values) {
			t.AppendRow(table.Row{section, k, values[k]})
		}
	}
	summary := map[string]any{
		"id":      task.ID,
		"project": task.Project,
		"name":    task.Name,
		"type":    task.Type,
		"status":  task.Status,
		"queue":   task.Queue,
		"script":  task.Script,
	}
	content, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	fmt.Print(string(content))
	if len(task.Parameters) > 0 {
		t.Render()
	}
	return nil
}

func NewTaskListCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "list <project>",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			project := ""
			if len(args) > 0 {
				project = args[0]
			}
			cli, err := options.Client()
			if err != nil {
				return err
			}
			tasks, err := cli.ListTasks(ctx, project)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Project", "Name", "Type", "Status", "Queue", "Updated"})
			for _, task := range tasks {
				t.AppendRow(table.Row{task.ID, task.Project, task.Name, task.Type, task.Status, task.Queue, task.Updated.Format(time.RFC3339)})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}

func NewTaskWaitCmd(options *GlobalOptions) *cobra.Command {
	interval := tracker.DefaultWaitInterval
	statuses := []string{}
	cmd := &cobra.Command{
		Use:          "wait",
		Short:        "wait <task-id>",
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
			want := make([]types.TaskStatus, 0, len(statuses))
			for _, s := range statuses {
				want = append(want, types.TaskStatus(s))
			}
			task, err := cli.WaitTask(ctx, args[0], interval, want...)
			if err != nil {
				return err
			}
			fmt.Printf("task %s %s\n", task.ID, task.Status)
			if task.Status == types.TaskStatusFailed {
				return fmt.Errorf("task %s failed", task.ID)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", interval, "poll interval")
	cmd.Flags().StringSliceVar(&statuses, "status", statuses, "statuses to wait for, any finished status by default")
	return cmd
}

func NewTaskExecuteRemotelyCmd(options *GlobalOptions) *cobra.Command {
	opts := pipeline.RemoteOptions{}
	cmd := &cobra.Command{
		Use:   "execute-remotely",
		Short: "execute-remotely <task-id> --queue <queue>",
		Example: `
  trackx task execute-remotely 5f0c --queue v2-gpu --docker tensorflow/tensorflow:2.5.0-gpu
		`,
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
			if err := pipeline.ExecuteRemotely(ctx, cli, args[0], opts); err != nil {
				return err
			}
			fmt.Printf("task %s enqueued on %s\n", args[0], opts.Queue)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Queue, "queue", opts.Queue, "queue to enqueue into")
	cmd.Flags().StringVar(&opts.BaseDocker, "docker", opts.BaseDocker, "base docker image of the task")
	return cmd
}
