// Package trackertest provides an in-memory tracking server for tests.
package trackertest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	apierr "kubegems.io/trackx/pkg/errors"
	"kubegems.io/trackx/pkg/tracker"
	"kubegems.io/trackx/pkg/types"
)

type Server struct {
	*httptest.Server
	// Token, when set, must be presented as a bearer token.
	Token string
	// Queues limits the accepted queue names, any queue is accepted when empty.
	Queues []string

	mu       sync.Mutex
	tasks    map[string]*types.Task
	queued   map[string][]string
	datasets []types.Dataset
	scalars  map[string][]tracker.ScalarEvent
	images   map[string][]tracker.ImageEvent
}

func NewServer() *Server {
	s := &Server{
		tasks:   map[string]*types.Task{},
		queued:  map[string][]string{},
		scalars: map[string][]tracker.ScalarEvent{},
		images:  map[string][]tracker.ImageEvent{},
	}
	s.Server = httptest.NewServer(s.route())
	return s
}

func (s *Server) route() http.Handler {
	r := mux.NewRouter()
	r.Use(s.auth)
	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Methods("POST").Path("/tasks").HandlerFunc(s.createTask)
	r.Methods("GET").Path("/tasks").HandlerFunc(s.listTasks)
	r.Methods("GET").Path("/tasks/{id}").HandlerFunc(s.getTask)
	task := r.PathPrefix("/tasks/{id}").Subrouter()
	task.Methods("PUT").Path("/parameters/{section}").HandlerFunc(s.putParameters)
	task.Methods("PUT").Path("/configurations/{name}").HandlerFunc(s.putConfiguration)
	task.Methods("PUT").Path("/labels").HandlerFunc(s.putLabels)
	task.Methods("PUT").Path("/docker").HandlerFunc(s.putDocker)
	task.Methods("POST").Path("/events/scalars").HandlerFunc(s.postScalar)
	task.Methods("POST").Path("/events/images").HandlerFunc(s.postImage)
	r.Methods("POST").Path("/queues/{queue}/tasks").HandlerFunc(s.enqueue)
	r.Methods("GET").Path("/datasets").HandlerFunc(s.listDatasets)
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			responseError(w, apierr.NewUnauthorizedError("invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	req := tracker.CreateTaskRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	now := time.Now()
	task := &types.Task{
		ID:      uuid.NewString(),
		Project: req.Project,
		Name:    req.Name,
		Type:    req.Type,
		Status:  types.TaskStatusCreated,
		Script: types.Script{
			Repository:       req.Repository,
			Branch:           req.Branch,
			EntryPoint:       req.Script,
			RequirementsFile: req.RequirementsFile,
		},
		Created: now,
		Updated: now,
	}
	if req.Docker != nil {
		task.Docker = *req.Docker
	}
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	responseOK(w, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	s.mu.Lock()
	defer s.mu.Unlock()
	list := types.TaskList{Tasks: []types.Task{}}
	for _, task := range s.tasks {
		if project == "" || task.Project == project {
			list.Tasks = append(list.Tasks, *task)
		}
	}
	responseOK(w, list)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	s.withTask(w, r, func(task *types.Task) error { return nil })
}

func (s *Server) putParameters(w http.ResponseWriter, r *http.Request) {
	values := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	section := mux.Vars(r)["section"]
	s.withTask(w, r, func(task *types.Task) error {
		if task.Parameters == nil {
			task.Parameters = map[string]map[string]string{}
		}
		if task.Parameters[section] == nil {
			task.Parameters[section] = map[string]string{}
		}
		for k, v := range values {
			task.Parameters[section][k] = v
		}
		return nil
	})
}

func (s *Server) putConfiguration(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		responseError(w, apierr.NewInternalError(err))
		return
	}
	name := mux.Vars(r)["name"]
	s.withTask(w, r, func(task *types.Task) error {
		if task.Configurations == nil {
			task.Configurations = map[string]string{}
		}
		task.Configurations[name] = string(content)
		return nil
	})
}

func (s *Server) putLabels(w http.ResponseWriter, r *http.Request) {
	labels := map[string]int{}
	if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	s.withTask(w, r, func(task *types.Task) error {
		task.ModelLabels = labels
		return nil
	})
}

func (s *Server) putDocker(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	s.withTask(w, r, func(task *types.Task) error {
		task.Docker = body["image"]
		return nil
	})
}

func (s *Server) postScalar(w http.ResponseWriter, r *http.Request) {
	event := tracker.ScalarEvent{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	s.withTask(w, r, func(task *types.Task) error {
		s.scalars[task.ID] = append(s.scalars[task.ID], event)
		return nil
	})
}

func (s *Server) postImage(w http.ResponseWriter, r *http.Request) {
	event := tracker.ImageEvent{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	s.withTask(w, r, func(task *types.Task) error {
		s.images[task.ID] = append(s.images[task.ID], event)
		return nil
	})
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	queue := mux.Vars(r)["queue"]
	body := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responseError(w, apierr.NewParameterInvalidError(err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Queues) > 0 && !contains(s.Queues, queue) {
		responseError(w, apierr.NewQueueUnknownError(queue))
		return
	}
	task, ok := s.tasks[body["task"]]
	if !ok {
		responseError(w, apierr.NewTaskUnknownError(body["task"]))
		return
	}
	if task.Status != types.TaskStatusCreated && !task.Status.Finished() {
		responseError(w, apierr.NewTaskInvalidError("task already " + string(task.Status)))
		return
	}
	task.Status = types.TaskStatusQueued
	task.Queue = queue
	task.Updated = time.Now()
	s.queued[queue] = append(s.queued[queue], task.ID)
	responseOK(w, map[string]string{"queue": queue, "task": task.ID})
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	project, name := r.URL.Query().Get("project"), r.URL.Query().Get("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	list := types.DatasetList{Datasets: []types.Dataset{}}
	for _, ds := range s.datasets {
		if project != "" && ds.Project != project {
			continue
		}
		if name != "" && ds.Name != name {
			continue
		}
		list.Datasets = append(list.Datasets, ds)
	}
	responseOK(w, list)
}

func (s *Server) withTask(w http.ResponseWriter, r *http.Request, fn func(task *types.Task) error) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		responseError(w, apierr.NewTaskUnknownError(id))
		return
	}
	if err := fn(task); err != nil {
		responseError(w, err)
		return
	}
	responseOK(w, task)
}

// AddDataset registers a dataset version, assigning an id when empty.
func (s *Server) AddDataset(ds types.Dataset) types.Dataset {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.Created.IsZero() {
		ds.Created = time.Now()
	}
	s.mu.Lock()
	s.datasets = append(s.datasets, ds)
	s.mu.Unlock()
	return ds
}

// Task returns a copy of the stored task.
func (s *Server) Task(id string) (types.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return types.Task{}, false
	}
	return *task, true
}

func (s *Server) SetTaskStatus(id string, status types.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Status = status
		task.Updated = time.Now()
	}
}

func (s *Server) Queued(queue string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queued[queue]...)
}

func (s *Server) Scalars(id string) []tracker.ScalarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracker.ScalarEvent{}, s.scalars[id]...)
}

func (s *Server) Images(id string) []tracker.ImageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracker.ImageEvent{}, s.images[id]...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func responseError(w http.ResponseWriter, err error) {
	info := apierr.ErrorInfo{}
	if !errors.As(err, &info) {
		info = apierr.ErrorInfo{
			HttpStatus: http.StatusBadRequest,
			Code:       apierr.ErrCodeUnknow,
			Message:    err.Error(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(info.HttpStatus)
	json.NewEncoder(w).Encode(info)
}

func responseOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
