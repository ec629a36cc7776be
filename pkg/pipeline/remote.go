package pipeline

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// RemoteClient is the part of the tracking server API needed to hand a task over to an agent queue.
type RemoteClient interface {
	SetBaseDocker(ctx context.Context, id string, image string) error
	Enqueue(ctx context.Context, id string, queue string) error
}

type RemoteOptions struct {
	// BaseDocker is the image the agent runs the task in, left unchanged when empty.
	BaseDocker string `json:"baseDocker,omitempty"`
	Queue      string `json:"queue"`
}

// ExecuteRemotely sets the base docker image of an existing task and enqueues it.
func ExecuteRemotely(ctx context.Context, cli RemoteClient, id string, opts RemoteOptions) error {
	if opts.BaseDocker != "" {
		if err := cli.SetBaseDocker(ctx, id, opts.BaseDocker); err != nil {
			return fmt.Errorf("set base docker: %w", err)
		}
	}
	if err := cli.Enqueue(ctx, id, opts.Queue); err != nil {
		return fmt.Errorf("enqueue %s: %w", opts.Queue, err)
	}
	logr.FromContextOrDiscard(ctx).Info("task handed over", "id", id, "queue", opts.Queue, "docker", opts.BaseDocker)
	return nil
}
