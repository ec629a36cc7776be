package types

import (
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

type TaskType string

const (
	TaskTypeTraining       TaskType = "training"
	TaskTypeController     TaskType = "controller"
	TaskTypeDataProcessing TaskType = "data_processing"
	TaskTypeInference      TaskType = "inference"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "created"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusStopped    TaskStatus = "stopped"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Finished reports whether no further transitions are expected.
func (s TaskStatus) Finished() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusStopped:
		return true
	default:
		return false
	}
}

type Task struct {
	ID             string                       `json:"id"`
	Project        string                       `json:"project"`
	Name           string                       `json:"name"`
	Type           TaskType                     `json:"type"`
	Status         TaskStatus                   `json:"status"`
	Queue          string                       `json:"queue,omitempty"`
	Script         Script                       `json:"script,omitempty"`
	Docker         string                       `json:"docker,omitempty"`
	Parameters     map[string]map[string]string `json:"parameters,omitempty"`
	Configurations map[string]string            `json:"configurations,omitempty"`
	ModelLabels    map[string]int               `json:"modelLabels,omitempty"`
	Created        time.Time                    `json:"created,omitempty"`
	Updated        time.Time                    `json:"updated,omitempty"`
}

type Script struct {
	Repository       string `json:"repository,omitempty"`
	Branch           string `json:"branch,omitempty"`
	EntryPoint       string `json:"entryPoint,omitempty"`
	RequirementsFile string `json:"requirementsFile,omitempty"`
}

// Descriptor describes a single file of a dataset version.
type Descriptor struct {
	Name      string        `json:"name"`
	MediaType string        `json:"mediaType,omitempty"`
	Digest    digest.Digest `json:"digest,omitempty"`
	Size      int64         `json:"size,omitempty"`
	URL       string        `json:"url,omitempty"`
	Modified  time.Time     `json:"modified,omitempty"`
}

func SortDescriptorName(a, b Descriptor) bool {
	return strings.Compare(a.Name, b.Name) < 0
}

type Dataset struct {
	ID       string       `json:"id"`
	Project  string       `json:"project"`
	Name     string       `json:"name"`
	Version  string       `json:"version,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Files    []Descriptor `json:"files,omitempty"`
	Created  time.Time    `json:"created,omitempty"`
	Finalize bool         `json:"finalized,omitempty"`
}

// Size is the sum of all file sizes.
func (d Dataset) Size() int64 {
	var total int64
	for _, f := range d.Files {
		total += f.Size
	}
	return total
}

type TaskList struct {
	Tasks []Task `json:"tasks"`
}

type DatasetList struct {
	Datasets []Dataset `json:"datasets"`
}
