package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DownloadRetries    = 3
)

// API is the subset of the s3 client used for downloads.
type API interface {
	manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
}

// Manager downloads objects into a local cache directory.
type Manager struct {
	Client      API
	CacheDir    string
	Concurrency int
}

func NewManager(ctx context.Context, options *S3Options, cachedir string) (*Manager, error) {
	cli, err := NewS3Client(ctx, options)
	if err != nil {
		return nil, err
	}
	return &Manager{Client: cli, CacheDir: cachedir, Concurrency: DefaultConcurrency}, nil
}

type Object struct {
	Key  string
	Size int64
}

// ListObjects lists every object under prefix.
func (m *Manager) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	var result []Object
	paginator := s3.NewListObjectsV2Paginator(m.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			result = append(result, Object{Key: key, Size: obj.Size})
		}
	}
	return result, nil
}

// DownloadFolder mirrors every object under the remote prefix into the cache
// and returns the local folder. Objects already present with the same size are skipped.
func (m *Manager) DownloadFolder(ctx context.Context, remoteURL string) (string, error) {
	bucket, prefix, err := ParseURL(remoteURL)
	if err != nil {
		return "", err
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("bucket", bucket, "prefix", prefix)

	localdir := filepath.Join(m.CacheDir, bucket, filepath.FromSlash(prefix))
	if err := os.MkdirAll(localdir, 0o755); err != nil {
		return "", err
	}
	objects, err := m.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", remoteURL, err)
	}

	type pending struct {
		key, localfile string
	}
	todo := []pending{}
	for _, obj := range objects {
		if !inFolder(prefix, obj.Key) {
			continue
		}
		localfile, err := localPath(localdir, prefix, obj.Key)
		if err != nil {
			return "", err
		}
		if fi, err := os.Stat(localfile); err == nil && !fi.IsDir() && fi.Size() == obj.Size {
			log.V(1).Info("object cached", "key", obj.Key)
			continue
		}
		todo = append(todo, pending{key: obj.Key, localfile: localfile})
	}
	log.Info("downloading folder", "objects", len(todo), "into", localdir)

	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for _, p := range todo {
		p := p
		eg.Go(func() error {
			return retry(ctx, DownloadRetries, func() error {
				return m.downloadTo(ctx, bucket, p.key, p.localfile)
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}
	return localdir, nil
}

// DownloadFile writes a single object to into.
func (m *Manager) DownloadFile(ctx context.Context, remoteURL string, into io.WriterAt) (int64, error) {
	bucket, key, err := ParseURL(remoteURL)
	if err != nil {
		return 0, err
	}
	return manager.NewDownloader(m.Client).Download(ctx, into, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

func (m *Manager) downloadTo(ctx context.Context, bucket, key, localfile string) error {
	if err := os.MkdirAll(filepath.Dir(localfile), 0o755); err != nil {
		return err
	}
	tmp := localfile + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = manager.NewDownloader(m.Client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("object downloaded", "key", key)
	return os.Rename(tmp, localfile)
}

// inFolder reports whether key is prefix itself or lies below it at a "/" boundary.
// "MTL" holds "MTL/a.csv" but not "MTL-911/a.csv".
func inFolder(prefix, key string) bool {
	if prefix == "" || strings.HasSuffix(prefix, "/") || key == prefix {
		return strings.HasPrefix(key, prefix)
	}
	return strings.HasPrefix(key, prefix+"/")
}

// localPath maps key to a file under dir, rejecting keys that escape it.
func localPath(dir, prefix, key string) (string, error) {
	if !inFolder(prefix, key) {
		return "", fmt.Errorf("object key %s is outside of %s", key, prefix)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	if rel == "" {
		rel = path.Base(key)
	}
	for _, elem := range strings.Split(rel, "/") {
		if elem == ".." {
			return "", fmt.Errorf("invalid object key: %s", key)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

func retry(ctx context.Context, max int, fn func() error) error {
	var reterr error
	for i := 0; i < max; i++ {
		if err := fn(); err != nil {
			reterr = err
		} else {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return reterr
}
