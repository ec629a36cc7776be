package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
	"kubegems.io/trackx/pkg/errors"
	"kubegems.io/trackx/pkg/types"
)

// Getter resolves datasets on the tracking server.
type Getter interface {
	GetDataset(ctx context.Context, project, name string) (*types.Dataset, error)
}

// Fetcher downloads objects from object storage.
type Fetcher interface {
	DownloadFile(ctx context.Context, remoteURL string, into io.WriterAt) (int64, error)
}

// Manager keeps local copies of dataset versions under CacheDir.
type Manager struct {
	Tracker    Getter
	Storage    Fetcher
	HTTPClient *http.Client
	CacheDir   string

	index *index
}

// Open creates the cache directory and its index. Storage may be nil when no
// dataset file lives in object storage.
func Open(cachedir string, tracker Getter, storage Fetcher) (*Manager, error) {
	if err := os.MkdirAll(cachedir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset cache:%s %w", cachedir, err)
	}
	idx, err := openIndex(filepath.Join(cachedir, "index"))
	if err != nil {
		return nil, fmt.Errorf("open dataset index: %w", err)
	}
	return &Manager{
		Tracker:    tracker,
		Storage:    storage,
		HTTPClient: http.DefaultClient,
		CacheDir:   cachedir,
		index:      idx,
	}, nil
}

func (m *Manager) Close() error {
	return m.index.close()
}

func (m *Manager) Get(ctx context.Context, project, name string) (*types.Dataset, error) {
	return m.Tracker.GetDataset(ctx, project, name)
}

// GetLocalCopy resolves the dataset and returns a local directory holding its files.
func (m *Manager) GetLocalCopy(ctx context.Context, project, name string) (string, error) {
	ds, err := m.Get(ctx, project, name)
	if err != nil {
		return "", err
	}
	return m.LocalCopy(ctx, ds)
}

// LocalCopy returns the cached directory of ds, downloading it first when absent.
func (m *Manager) LocalCopy(ctx context.Context, ds *types.Dataset) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("dataset", ds.ID, "project", ds.Project, "name", ds.Name)

	entry, err := m.index.get(ds.ID)
	if err != nil {
		return "", err
	}
	if entry != nil && entry.Version == ds.Version {
		if fi, err := os.Stat(entry.Path); err == nil && fi.IsDir() {
			log.V(1).Info("dataset cached", "path", entry.Path)
			return entry.Path, nil
		}
	}

	// files are fetched into a staging dir and swapped in only once all of them are verified
	tmpdir := filepath.Join(m.CacheDir, "tmp", ds.ID)
	if err := os.RemoveAll(tmpdir); err != nil {
		return "", err
	}
	downloads, staging := filepath.Join(tmpdir, "blobs"), filepath.Join(tmpdir, "content")
	for _, d := range []string{downloads, staging} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", err
		}
	}
	defer os.RemoveAll(tmpdir)

	log.Info("fetching dataset", "files", len(ds.Files), "size", ds.Size())
	for _, file := range ds.Files {
		if err := m.fetchFile(ctx, file, downloads, staging); err != nil {
			return "", fmt.Errorf("fetch dataset file %s: %w", file.Name, err)
		}
	}

	dir := filepath.Join(m.CacheDir, "datasets", ds.ID)
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", err
	}
	if err := m.index.put(indexEntry{
		ID:      ds.ID,
		Project: ds.Project,
		Name:    ds.Name,
		Version: ds.Version,
		Path:    dir,
		Fetched: time.Now(),
	}); err != nil {
		return "", err
	}
	return dir, nil
}

// Remove deletes the cached copy of the dataset.
func (m *Manager) Remove(ctx context.Context, id string) error {
	entry, err := m.index.get(id)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		return err
	}
	return m.index.remove(id)
}

func (m *Manager) fetchFile(ctx context.Context, file types.Descriptor, tmpdir, dir string) error {
	if strings.Contains(file.Name, "..") || filepath.IsAbs(file.Name) {
		return errors.NewParameterInvalidError("invalid file name: " + file.Name)
	}
	if file.Digest != "" {
		if err := file.Digest.Validate(); err != nil {
			return errors.NewDigestInvalidError("valid digest", file.Digest.String())
		}
	}
	tmpfile := filepath.Join(tmpdir, digestName(file))
	f, err := os.Create(tmpfile)
	if err != nil {
		return err
	}
	if err := m.download(ctx, file.URL, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := verify(tmpfile, file.Digest); err != nil {
		return err
	}

	if isArchive(file.MediaType, file.Name) {
		archive, err := os.Open(tmpfile)
		if err != nil {
			return err
		}
		defer archive.Close()
		return Unpack(ctx, dir, archive)
	}
	target := filepath.Join(dir, filepath.FromSlash(file.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Rename(tmpfile, target)
}

func (m *Manager) download(ctx context.Context, location string, into *os.File) error {
	switch {
	case strings.HasPrefix(location, "s3://"):
		if m.Storage == nil {
			return errors.NewUnsupportedError("no object storage configured for " + location)
		}
		_, err := m.Storage.DownloadFile(ctx, location, into)
		return err
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return err
		}
		cli := m.HTTPClient
		if cli == nil {
			cli = http.DefaultClient
		}
		resp, err := cli.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return errors.ErrorInfo{HttpStatus: resp.StatusCode, Code: errors.ErrCodeUnknow, Message: string(msg)}
		}
		_, err = io.Copy(into, resp.Body)
		return err
	default:
		return errors.NewUnsupportedError("location: " + location)
	}
}

func verify(path string, expected digest.Digest) error {
	if expected == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	got, err := expected.Algorithm().FromReader(f)
	if err != nil {
		return err
	}
	if got != expected {
		return errors.NewDigestInvalidError(expected.String(), got.String())
	}
	return nil
}

func digestName(file types.Descriptor) string {
	if file.Digest != "" {
		return file.Digest.Encoded()
	}
	return digest.FromString(file.Name).Encoded()
}
