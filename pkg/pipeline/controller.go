package pipeline

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/utils/pointer"
	"kubegems.io/trackx/pkg/tracker"
	"kubegems.io/trackx/pkg/types"
)

const ParametersSection = "General"

// TaskClient is the part of the tracking server API needed to enqueue a controller.
type TaskClient interface {
	CreateTask(ctx context.Context, req tracker.CreateTaskRequest) (*types.Task, error)
	ConnectParameters(ctx context.Context, id string, section string, params map[string]any) error
	Enqueue(ctx context.Context, id string, queue string) error
}

type ControllerOptions struct {
	Project          string `json:"project"`
	TaskName         string `json:"taskName"`
	Repo             string `json:"repo"`
	Branch           string `json:"branch"`
	Script           string `json:"script"`
	RequirementsFile string `json:"requirementsFile"`
	Docker           string `json:"docker,omitempty"`
	Queue            string `json:"queue"`
	AddTaskInitCall  bool   `json:"addTaskInitCall"`
}

func DefaultControllerOptions() *ControllerOptions {
	return &ControllerOptions{
		Project:          "Emilio/dummy_test",
		TaskName:         "dummy_create_enqueue",
		Repo:             "keras_mnist",
		Branch:           "master",
		Script:           "./dummy_pipeline.py",
		RequirementsFile: "./requirements_file",
		Queue:            "cpu",
		AddTaskInitCall:  false,
	}
}

// ControllerParameters are connected to the controller task as hyper parameters.
type ControllerParameters struct {
	BuildingID      int     `json:"building_id"`
	BuildingName    string  `json:"building_name"`
	ApplicationID   string  `json:"application_id"`
	ApplicationName string  `json:"application_name"`
	ControlZoneID   *string `json:"control_zone_id,omitempty"`
	Client          string  `json:"client"`
}

func (p ControllerParameters) Map() map[string]any {
	params := map[string]any{
		"building_id":      p.BuildingID,
		"building_name":    p.BuildingName,
		"application_id":   p.ApplicationID,
		"application_name": p.ApplicationName,
		"client":           p.Client,
	}
	if p.ControlZoneID != nil {
		params["control_zone_id"] = *p.ControlZoneID
	}
	return params
}

// CreateEnqueueController creates a controller task, connects params and enqueues it.
// It returns the id of the created task.
func CreateEnqueueController(ctx context.Context, cli TaskClient, opts *ControllerOptions, params ControllerParameters) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("project", opts.Project, "task", opts.TaskName)

	req := tracker.CreateTaskRequest{
		Project:          opts.Project,
		Name:             opts.TaskName,
		Type:             types.TaskTypeController,
		Repository:       opts.Repo,
		Branch:           opts.Branch,
		Script:           opts.Script,
		RequirementsFile: opts.RequirementsFile,
		AddTaskInitCall:  pointer.Bool(opts.AddTaskInitCall),
	}
	if opts.Docker != "" {
		req.Docker = pointer.String(opts.Docker)
	}
	task, err := cli.CreateTask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create controller task: %w", err)
	}
	if err := cli.ConnectParameters(ctx, task.ID, ParametersSection, params.Map()); err != nil {
		return "", fmt.Errorf("connect parameters: %w", err)
	}
	if err := cli.Enqueue(ctx, task.ID, opts.Queue); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", opts.Queue, err)
	}
	log.Info("controller enqueued", "id", task.ID, "queue", opts.Queue)
	return task.ID, nil
}
