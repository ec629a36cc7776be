package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"kubegems.io/trackx/pkg/pipeline"
	"kubegems.io/trackx/pkg/serving"
)

// Score is the result of evaluating the model on the test set.
type Score struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Model is a trainable model driven by the Trainer.
type Model interface {
	FitEpoch(ctx context.Context, epoch int, batchSize int) (Logs, error)
	Evaluate(ctx context.Context) (Score, error)
	LoadWeights(path string) error
	SaveWeights(path string) error
	// Export writes a servable model into dir and returns its signature.
	Export(ctx context.Context, dir string) (serving.Signature, error)
}

// TaskRecorder records training artifacts on the tracking server task.
type TaskRecorder interface {
	SetModelLabels(ctx context.Context, id string, labels map[string]int) error
	ConnectConfiguration(ctx context.Context, id string, name string, content []byte) error
	SetBaseDocker(ctx context.Context, id string, image string) error
	Enqueue(ctx context.Context, id string, queue string) error
}

type Options struct {
	Epochs      int    `json:"epochs"`
	BatchSize   int    `json:"batchSize"`
	ResumeEpoch int    `json:"resumeEpoch"`
	ExportDir   string `json:"exportDir"`
	ConfigFile  string `json:"configFile"`
	// Queue hands the task over to an agent queue instead of training locally.
	Queue      string `json:"queue,omitempty"`
	BaseDocker string `json:"baseDocker,omitempty"`
}

func DefaultOptions() *Options {
	return &Options{
		Epochs:      1,
		BatchSize:   128,
		ResumeEpoch: 1,
		ExportDir:   "serving_model",
		ConfigFile:  serving.ConfigFileName,
	}
}

// withDefaults returns a copy of o with every zero field taken from DefaultOptions.
func (o *Options) withDefaults() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}
	out := *o
	if out.Epochs <= 0 {
		out.Epochs = def.Epochs
	}
	if out.BatchSize <= 0 {
		out.BatchSize = def.BatchSize
	}
	if out.ResumeEpoch <= 0 {
		out.ResumeEpoch = def.ResumeEpoch
	}
	if out.ExportDir == "" {
		out.ExportDir = def.ExportDir
	}
	if out.ConfigFile == "" {
		out.ConfigFile = def.ConfigFile
	}
	return &out
}

// DigitLabels is the class enumeration of the MNIST digits.
func DigitLabels() map[string]int {
	labels := make(map[string]int, 10)
	for i := 0; i < 10; i++ {
		labels[fmt.Sprintf("digit_%d", i)] = i
	}
	return labels
}

type Trainer struct {
	Model       Model
	Checkpoints CheckpointStore
	Callbacks   []Callback
	// Tracker is optional; without it nothing is recorded remotely.
	Tracker TaskRecorder
	TaskID  string
	Labels  map[string]int
	Options *Options
}

// Run resumes from the configured checkpoint when present, trains, evaluates,
// exports the servable model and its serving descriptor.
// With Options.Queue set the task is enqueued instead and Run returns a nil score.
func (t *Trainer) Run(ctx context.Context) (*Score, error) {
	opts := t.Options.withDefaults()
	log := logr.FromContextOrDiscard(ctx).WithValues("task", t.TaskID)

	if t.Tracker != nil && len(t.Labels) > 0 {
		if err := t.Tracker.SetModelLabels(ctx, t.TaskID, t.Labels); err != nil {
			return nil, fmt.Errorf("set model labels: %w", err)
		}
	}

	if opts.Queue != "" {
		if t.Tracker == nil {
			return nil, fmt.Errorf("remote execution on %s requires a tracker", opts.Queue)
		}
		remote := pipeline.RemoteOptions{BaseDocker: opts.BaseDocker, Queue: opts.Queue}
		if err := pipeline.ExecuteRemotely(ctx, t.Tracker, t.TaskID, remote); err != nil {
			return nil, err
		}
		return nil, nil
	}

	checkpoint, ok, err := t.Checkpoints.Find(opts.ResumeEpoch)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := t.Model.LoadWeights(checkpoint.Path); err != nil {
			return nil, fmt.Errorf("load checkpoint %s: %w", checkpoint.Path, err)
		}
		log.Info("resumed from checkpoint", "path", checkpoint.Path)
	} else {
		log.Info("no checkpoint found, training from scratch", "path", t.Checkpoints.Path(opts.ResumeEpoch))
	}

	if t.Checkpoints.Dir != "" {
		if err := os.MkdirAll(t.Checkpoints.Dir, 0o755); err != nil {
			return nil, err
		}
	}
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		logs, err := t.Model.FitEpoch(ctx, epoch, opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if err := t.Model.SaveWeights(t.Checkpoints.Path(epoch)); err != nil {
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
		for _, cb := range t.Callbacks {
			if err := cb.OnEpochEnd(ctx, epoch, logs); err != nil {
				return nil, fmt.Errorf("epoch %d callback: %w", epoch, err)
			}
		}
		log.V(1).Info("epoch finished", "epoch", epoch, "logs", logs)
	}

	score, err := t.Model.Evaluate(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	if err := t.export(ctx, opts); err != nil {
		return nil, err
	}
	log.Info("training finished", "loss", score.Loss, "accuracy", score.Accuracy)
	return &score, nil
}

func (t *Trainer) export(ctx context.Context, opts *Options) error {
	signature, err := t.Model.Export(ctx, opts.ExportDir)
	if err != nil {
		return fmt.Errorf("export model: %w", err)
	}
	spec, err := serving.NewModelIOSpec(signature)
	if err != nil {
		return err
	}
	if err := serving.Emit(spec, opts.ConfigFile); err != nil {
		return err
	}
	if t.Tracker == nil {
		return nil
	}
	content, err := os.ReadFile(opts.ConfigFile)
	if err != nil {
		return err
	}
	return t.Tracker.ConnectConfiguration(ctx, t.TaskID, filepath.Base(opts.ConfigFile), content)
}
