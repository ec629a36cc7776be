package training

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kubegems.io/trackx/pkg/serving"
	"kubegems.io/trackx/pkg/tracker"
	"kubegems.io/trackx/pkg/tracker/trackertest"
)

type fakeModel struct {
	loaded  string
	epochs  []int
	batches []int
	weights map[string]bool
	loadErr error
}

func (m *fakeModel) FitEpoch(ctx context.Context, epoch int, batchSize int) (Logs, error) {
	m.epochs = append(m.epochs, epoch)
	m.batches = append(m.batches, batchSize)
	return Logs{"loss": 1 / float64(epoch), "accuracy": 0.9, "val_loss": 0.5}, nil
}

func (m *fakeModel) Evaluate(ctx context.Context) (Score, error) {
	return Score{Loss: 0.1, Accuracy: 0.97}, nil
}

func (m *fakeModel) LoadWeights(path string) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = path
	return nil
}

func (m *fakeModel) SaveWeights(path string) error {
	if m.weights == nil {
		m.weights = map[string]bool{}
	}
	m.weights[path] = true
	return os.WriteFile(path, []byte("weights"), 0o644)
}

func (m *fakeModel) Export(ctx context.Context, dir string) (serving.Signature, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return serving.Signature{}, err
	}
	return serving.Signature{
		Inputs:  []serving.Tensor{{Name: "dense_input", Shape: serving.Dims{-1, 784}}},
		Outputs: []serving.Tensor{{Name: "activation_2", Shape: serving.Dims{-1, 10}}},
	}, nil
}

func TestTrainer_Run(t *testing.T) {
	ctx := context.Background()
	srv := trackertest.NewServer()
	defer srv.Close()
	cli := tracker.NewClient(srv.URL, "")
	task, err := cli.CreateTask(ctx, tracker.CreateTaskRequest{Project: "examples", Name: "Keras MNIST serve example"})
	require.NoError(t, err)

	dir := t.TempDir()
	model := &fakeModel{}
	sample := make([]float32, SampleRows*SampleCols)
	trainer := &Trainer{
		Model:       model,
		Checkpoints: CheckpointStore{Dir: filepath.Join(dir, "keras_example")},
		Callbacks: []Callback{
			ScalarReporter{Sink: cli, TaskID: task.ID},
			ImageReporter{Sink: cli, TaskID: task.ID, Sample: sample},
		},
		Tracker: cli,
		TaskID:  task.ID,
		Labels:  DigitLabels(),
		Options: &Options{
			Epochs:      2,
			BatchSize:   64,
			ResumeEpoch: 1,
			ExportDir:   filepath.Join(dir, "serving_model"),
			ConfigFile:  filepath.Join(dir, serving.ConfigFileName),
		},
	}
	score, err := trainer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Score{Loss: 0.1, Accuracy: 0.97}, score)

	assert.Empty(t, model.loaded, "no checkpoint existed before the first run")
	assert.Equal(t, []int{1, 2}, model.epochs)
	assert.True(t, model.weights[trainer.Checkpoints.Path(2)])

	written, err := os.ReadFile(trainer.Options.ConfigFile)
	require.NoError(t, err)
	assert.Contains(t, string(written), "dims: [-1, 784]")
	assert.Contains(t, string(written), "dims: [-1, 10]")

	stored, ok := srv.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, string(written), stored.Configurations[serving.ConfigFileName])
	assert.Equal(t, 10, len(stored.ModelLabels))
	assert.Equal(t, 3, stored.ModelLabels["digit_3"])

	// three metrics for each of two epochs
	assert.Len(t, srv.Scalars(task.ID), 6)
	assert.Len(t, srv.Images(task.ID), 2)

	// a second run resumes from the first epoch checkpoint
	model2 := &fakeModel{}
	trainer.Model = model2
	_, err = trainer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, trainer.Checkpoints.Path(1), model2.loaded)
}

func TestTrainer_RunCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	store := CheckpointStore{Dir: dir}
	require.NoError(t, os.WriteFile(store.Path(1), []byte("garbage"), 0o644))

	trainer := &Trainer{
		Model:       &fakeModel{loadErr: errors.New("bad file")},
		Checkpoints: store,
		Options:     &Options{Epochs: 1, ResumeEpoch: 1, ExportDir: filepath.Join(dir, "out"), ConfigFile: filepath.Join(dir, "config.pbtxt")},
	}
	_, err := trainer.Run(context.Background())
	assert.ErrorContains(t, err, "bad file")
}

func TestTrainer_RunPartialOptions(t *testing.T) {
	dir := t.TempDir()
	store := CheckpointStore{Dir: dir}
	require.NoError(t, os.WriteFile(store.Path(1), []byte("weights"), 0o644))

	model := &fakeModel{}
	trainer := &Trainer{
		Model:       model,
		Checkpoints: store,
		Options:     &Options{Epochs: 2, ExportDir: filepath.Join(dir, "out"), ConfigFile: filepath.Join(dir, "config.pbtxt")},
	}
	_, err := trainer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{128, 128}, model.batches)
	assert.Equal(t, store.Path(1), model.loaded, "resume epoch defaults to 1")
	assert.Equal(t, 0, trainer.Options.BatchSize, "caller options are left untouched")
}

func TestOptions_withDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
		want *Options
	}{
		{name: "nil", opts: nil, want: DefaultOptions()},
		{name: "empty", opts: &Options{}, want: DefaultOptions()},
		{
			name: "partial",
			opts: &Options{Epochs: 3, BatchSize: 32},
			want: &Options{Epochs: 3, BatchSize: 32, ResumeEpoch: 1, ExportDir: "serving_model", ConfigFile: serving.ConfigFileName},
		},
		{
			name: "queue kept",
			opts: &Options{Queue: "v2-gpu", BaseDocker: "tensorflow/tensorflow:2.5.0-gpu"},
			want: &Options{
				Epochs: 1, BatchSize: 128, ResumeEpoch: 1, ExportDir: "serving_model", ConfigFile: serving.ConfigFileName,
				Queue: "v2-gpu", BaseDocker: "tensorflow/tensorflow:2.5.0-gpu",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.withDefaults())
		})
	}
}

func TestTrainer_RunRemotely(t *testing.T) {
	ctx := context.Background()
	srv := trackertest.NewServer()
	defer srv.Close()
	cli := tracker.NewClient(srv.URL, "")
	task, err := cli.CreateTask(ctx, tracker.CreateTaskRequest{Project: "examples", Name: "Keras MNIST serve example"})
	require.NoError(t, err)

	model := &fakeModel{}
	trainer := &Trainer{
		Model:       model,
		Checkpoints: CheckpointStore{Dir: t.TempDir()},
		Tracker:     cli,
		TaskID:      task.ID,
		Labels:      DigitLabels(),
		Options:     &Options{Queue: "v2-gpu", BaseDocker: "tensorflow/tensorflow:2.5.0-gpu"},
	}
	score, err := trainer.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, score)
	assert.Empty(t, model.epochs, "nothing is trained locally")

	stored, ok := srv.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, "tensorflow/tensorflow:2.5.0-gpu", stored.Docker)
	assert.Equal(t, 10, len(stored.ModelLabels))
	assert.Equal(t, []string{task.ID}, srv.Queued("v2-gpu"))

	trainer.Tracker = nil
	_, err = trainer.Run(ctx)
	assert.Error(t, err)
}

func TestCheckpointStore(t *testing.T) {
	dir := t.TempDir()
	store := CheckpointStore{Dir: dir}
	assert.Equal(t, filepath.Join(dir, "weight.3.hdf5"), store.Path(3))

	_, ok, err := store.Find(1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	for _, epoch := range []int{1, 10, 2} {
		require.NoError(t, os.WriteFile(store.Path(epoch), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weight.best.hdf5"), nil, 0o644))

	ckpt, ok, err := store.Find(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Checkpoint{Epoch: 2, Path: store.Path(2)}, ckpt)

	latest, ok, err := store.Latest()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, latest.Epoch)

	_, _, err = CheckpointStore{Dir: dir, Pattern: "weights.h5"}.Latest()
	assert.Error(t, err)
}

func TestEncodeSample(t *testing.T) {
	sample := make([]float32, 4)
	sample[0], sample[1], sample[2], sample[3] = 0, 0.5, 1, 2
	content, err := EncodeSample(sample, 2, 2)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	r, g, b, _ := img.At(1, 0).RGBA()
	assert.Equal(t, uint32(127), r>>8)
	assert.Equal(t, r, g)
	assert.Equal(t, r, b)
	r, _, _, _ = img.At(1, 1).RGBA()
	assert.Equal(t, uint32(255), r>>8)

	_, err = EncodeSample(sample, 28, 28)
	assert.Error(t, err)
}

func TestScalarReporter(t *testing.T) {
	type event struct {
		title, series string
		iteration     int
		value         float64
	}
	var got []event
	sink := scalarSinkFunc(func(ctx context.Context, id, title, series string, iteration int, value float64) error {
		got = append(got, event{title, series, iteration, value})
		return nil
	})
	err := ScalarReporter{Sink: sink, TaskID: "t"}.OnEpochEnd(context.Background(), 3, Logs{"val_accuracy": 0.8, "accuracy": 0.9})
	require.NoError(t, err)
	assert.Equal(t, []event{{"accuracy", "train", 3, 0.9}, {"accuracy", "validation", 3, 0.8}}, got)
}

type scalarSinkFunc func(ctx context.Context, id, title, series string, iteration int, value float64) error

func (f scalarSinkFunc) ReportScalar(ctx context.Context, id, title, series string, iteration int, value float64) error {
	return f(ctx, id, title, series, iteration, value)
}
