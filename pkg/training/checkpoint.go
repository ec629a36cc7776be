package training

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

const DefaultCheckpointPattern = "weight.{epoch}.hdf5"

type Checkpoint struct {
	Epoch int
	Path  string
}

// CheckpointStore names per-epoch weight files inside Dir.
type CheckpointStore struct {
	Dir     string
	Pattern string
}

func (s CheckpointStore) pattern() string {
	if s.Pattern == "" {
		return DefaultCheckpointPattern
	}
	return s.Pattern
}

func (s CheckpointStore) Path(epoch int) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(s.pattern(), "{epoch}", strconv.Itoa(epoch)))
}

// Find returns the checkpoint of epoch. A missing file is reported with ok false and no error.
func (s CheckpointStore) Find(epoch int) (Checkpoint, bool, error) {
	path := s.Path(epoch)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}
	if fi.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint %s is a directory", path)
	}
	return Checkpoint{Epoch: epoch, Path: path}, true, nil
}

// Latest returns the checkpoint with the highest epoch.
func (s CheckpointStore) Latest() (Checkpoint, bool, error) {
	prefix, suffix, ok := strings.Cut(s.pattern(), "{epoch}")
	if !ok {
		return Checkpoint{}, false, fmt.Errorf("checkpoint pattern %q has no {epoch}", s.pattern())
	}
	matches, err := filepath.Glob(filepath.Join(s.Dir, prefix+"*"+suffix))
	if err != nil {
		return Checkpoint{}, false, err
	}
	checkpoints := []Checkpoint{}
	for _, match := range matches {
		name := filepath.Base(match)
		epoch, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
		if err != nil {
			continue
		}
		checkpoints = append(checkpoints, Checkpoint{Epoch: epoch, Path: match})
	}
	if len(checkpoints) == 0 {
		return Checkpoint{}, false, nil
	}
	slices.SortFunc(checkpoints, func(a, b Checkpoint) bool { return a.Epoch > b.Epoch })
	return checkpoints[0], true, nil
}
