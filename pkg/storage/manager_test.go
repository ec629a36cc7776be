package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	gets    map[string]int
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", aws.ToString(in.Key))
	}
	f.gets[aws.ToString(in.Key)]++
	n := int64(len(content))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(content)),
		ContentLength: n,
		ContentRange:  aws.String(fmt.Sprintf("bytes 0-%d/%d", n-1, n)),
	}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := []string{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), Size: int64(len(f.objects[k]))})
	}
	return out, nil
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{raw: "s3://bbai-ai-data/TOR-BGO-150KingW", bucket: "bbai-ai-data", prefix: "TOR-BGO-150KingW"},
		{raw: "s3://bucket", bucket: "bucket", prefix: ""},
		{raw: "s3://bucket/a/b/", bucket: "bucket", prefix: "a/b/"},
		{raw: "https://bucket/a", wantErr: true},
		{raw: "s3:///a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if bucket != tt.bucket || prefix != tt.prefix {
				t.Errorf("ParseURL() = %s, %s, want %s, %s", bucket, prefix, tt.bucket, tt.prefix)
			}
		})
	}
}

func TestManager_DownloadFolder(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{
			"building/a.csv":     "1,2,3",
			"building/sub/b.csv": "4,5,6",
			"building/sub/":      "",
			"other/c.csv":        "7,8,9",
			"building-911/d.csv": "secret",
		},
		gets: map[string]int{},
	}
	m := &Manager{Client: fake, CacheDir: t.TempDir(), Concurrency: 2}
	ctx := context.Background()

	dir, err := m.DownloadFolder(ctx, "s3://bucket/building")
	if err != nil {
		t.Fatalf("DownloadFolder() error = %v", err)
	}
	if want := filepath.Join(m.CacheDir, "bucket", "building"); dir != want {
		t.Errorf("DownloadFolder() = %s, want %s", dir, want)
	}
	for name, want := range map[string]string{"a.csv": "1,2,3", "sub/b.csv": "4,5,6"} {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(m.CacheDir, "bucket", "other")); !os.IsNotExist(err) {
		t.Errorf("objects outside the prefix must not be downloaded")
	}
	if fake.gets["building-911/d.csv"] != 0 {
		t.Errorf("sibling folder building-911 must not be downloaded")
	}
	if _, err := os.Stat(filepath.Join(dir, "-911")); !os.IsNotExist(err) {
		t.Errorf("sibling folder leaked into %s", dir)
	}

	// second run is served from the cache
	if _, err := m.DownloadFolder(ctx, "s3://bucket/building"); err != nil {
		t.Fatalf("DownloadFolder() error = %v", err)
	}
	if fake.gets["building/a.csv"] != 1 {
		t.Errorf("expected cached object to be fetched once, got %d", fake.gets["building/a.csv"])
	}
}

func TestManager_DownloadFolder_InvalidKey(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{
			"building/a.csv":         "1,2,3",
			"building/../escape.csv": "x",
		},
		gets: map[string]int{},
	}
	m := &Manager{Client: fake, CacheDir: t.TempDir(), Concurrency: 1}
	if _, err := m.DownloadFolder(context.Background(), "s3://bucket/building"); err == nil {
		t.Fatal("DownloadFolder() expected error for escaping key")
	}
	// keys are validated before any download starts
	if len(fake.gets) != 0 {
		t.Errorf("no object should be fetched, got %v", fake.gets)
	}
}

func TestManager_DownloadFile(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"models/config.pbtxt": "platform: \"x\"\n"}, gets: map[string]int{}}
	m := &Manager{Client: fake}
	buf := manager.NewWriteAtBuffer(nil)
	n, err := m.DownloadFile(context.Background(), "s3://bucket/models/config.pbtxt", buf)
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if n != 14 || !bytes.Equal(buf.Bytes(), []byte("platform: \"x\"\n")) {
		t.Errorf("DownloadFile() = %d %q", n, buf.Bytes())
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		prefix, key string
		want        string
		wantErr     bool
	}{
		{prefix: "p", key: "p/a/b.txt", want: filepath.Join("root", "a", "b.txt")},
		{prefix: "p/file.txt", key: "p/file.txt", want: filepath.Join("root", "file.txt")},
		{prefix: "p", key: "p/../../etc/passwd", wantErr: true},
		{prefix: "p", key: "p-2/a.txt", wantErr: true},
		{prefix: "p/", key: "p/a.txt", want: filepath.Join("root", "a.txt")},
		{prefix: "", key: "a/b.txt", want: filepath.Join("root", "a", "b.txt")},
	}
	for _, tt := range tests {
		got, err := localPath("root", tt.prefix, tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("localPath(%s) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("localPath(%s) = %s, want %s", tt.key, got, tt.want)
		}
	}
}
