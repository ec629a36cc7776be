package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"kubegems.io/trackx/pkg/errors"
	"kubegems.io/trackx/pkg/types"
)

const DefaultWaitInterval = 5 * time.Second

type CreateTaskRequest struct {
	Project          string         `json:"project"`
	Name             string         `json:"name"`
	Type             types.TaskType `json:"type"`
	Repository       string         `json:"repository,omitempty"`
	Branch           string         `json:"branch,omitempty"`
	Script           string         `json:"script,omitempty"`
	RequirementsFile string         `json:"requirementsFile,omitempty"`
	Docker           *string        `json:"docker,omitempty"`
	AddTaskInitCall  *bool          `json:"addTaskInitCall,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*types.Task, error) {
	if req.Project == "" || req.Name == "" {
		return nil, errors.NewParameterInvalidError("task project and name are required")
	}
	if req.Type == "" {
		req.Type = types.TaskTypeTraining
	}
	task := &types.Task{}
	if _, err := c.request(ctx, http.MethodPost, "/tasks", nil, req, task); err != nil {
		return nil, err
	}
	logr.FromContextOrDiscard(ctx).Info("task created", "id", task.ID, "project", task.Project, "name", task.Name)
	return task, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*types.Task, error) {
	task := &types.Task{}
	if _, err := c.request(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (c *Client) ListTasks(ctx context.Context, project string) ([]types.Task, error) {
	list := &types.TaskList{}
	path := "/tasks?" + url.Values{"project": {project}}.Encode()
	if _, err := c.request(ctx, http.MethodGet, path, nil, nil, list); err != nil {
		return nil, err
	}
	return list.Tasks, nil
}

// ConnectParameters stores params under section of the task hyper parameters.
// Values are stored in their string form.
func (c *Client) ConnectParameters(ctx context.Context, id string, section string, params map[string]any) error {
	values := make(map[string]string, len(params))
	for k, v := range params {
		if v == nil {
			values[k] = ""
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	path := "/tasks/" + url.PathEscape(id) + "/parameters/" + url.PathEscape(section)
	_, err := c.request(ctx, http.MethodPut, path, nil, values, &struct{}{})
	return err
}

// ConnectConfiguration attaches a named configuration document to the task.
func (c *Client) ConnectConfiguration(ctx context.Context, id string, name string, content []byte) error {
	header := map[string]string{"Content-Type": "text/plain"}
	path := "/tasks/" + url.PathEscape(id) + "/configurations/" + url.PathEscape(name)
	_, err := c.request(ctx, http.MethodPut, path, header, strings.NewReader(string(content)), &struct{}{})
	return err
}

func (c *Client) SetModelLabels(ctx context.Context, id string, labels map[string]int) error {
	path := "/tasks/" + url.PathEscape(id) + "/labels"
	_, err := c.request(ctx, http.MethodPut, path, nil, labels, &struct{}{})
	return err
}

func (c *Client) SetBaseDocker(ctx context.Context, id string, image string) error {
	path := "/tasks/" + url.PathEscape(id) + "/docker"
	_, err := c.request(ctx, http.MethodPut, path, nil, map[string]string{"image": image}, &struct{}{})
	return err
}

// Enqueue schedules the task for remote execution on queue.
func (c *Client) Enqueue(ctx context.Context, id string, queue string) error {
	if queue == "" {
		return errors.NewParameterInvalidError("queue is required")
	}
	path := "/queues/" + url.PathEscape(queue) + "/tasks"
	if _, err := c.request(ctx, http.MethodPost, path, nil, map[string]string{"task": id}, &struct{}{}); err != nil {
		return err
	}
	logr.FromContextOrDiscard(ctx).Info("task enqueued", "id", id, "queue", queue)
	return nil
}

// WaitTask polls the task until it reaches one of statuses, or any finished status when none given.
func (c *Client) WaitTask(ctx context.Context, id string, interval time.Duration, statuses ...types.TaskStatus) (*types.Task, error) {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("id", id)
	var last *types.Task
	err := wait.PollUntilWithContext(ctx, interval, func(ctx context.Context) (bool, error) {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			return false, err
		}
		last = task
		log.V(1).Info("task status", "status", task.Status)
		if len(statuses) == 0 {
			return task.Status.Finished(), nil
		}
		for _, s := range statuses {
			if task.Status == s {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return last, err
	}
	return last, nil
}

// SortedParameterKeys returns the keys of a parameter section in order.
func SortedParameterKeys(section map[string]string) []string {
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
