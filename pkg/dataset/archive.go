package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v4"
	"github.com/opencontainers/go-digest"
)

const MediaTypeDatasetArchive = "application/vnd.trackx.dataset.archive.tar+gzip"

var tgz = archiver.CompressedArchive{
	Archival:    archiver.Tar{},
	Compression: archiver.Gz{},
}

func isArchive(mediatype, name string) bool {
	return mediatype == MediaTypeDatasetArchive || strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

// Pack archives dir as tar.gz into w and returns the archive digest.
func Pack(ctx context.Context, dir string, w io.Writer) (digest.Digest, error) {
	files, err := archiver.FilesFromDisk(
		&archiver.FromDiskOptions{ClearAttributes: true},
		map[string]string{dir + string(os.PathSeparator): ""},
	)
	if err != nil {
		return "", err
	}
	d := digest.Canonical.Digester()
	if err := tgz.Archive(ctx, io.MultiWriter(w, d.Hash()), files); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// Unpack extracts a tar.gz stream into dir.
func Unpack(ctx context.Context, intodir string, r io.Reader) error {
	return tgz.Extract(ctx, r, nil, func(ctx context.Context, f archiver.File) error {
		root := filepath.Clean(intodir)
		nameinlocal := filepath.Join(root, f.NameInArchive)
		if nameinlocal == root {
			return nil
		}
		if !strings.HasPrefix(nameinlocal, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.NameInArchive)
		}
		if f.IsDir() {
			return os.MkdirAll(nameinlocal, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(nameinlocal), 0o755); err != nil {
			return err
		}
		srcfile, err := f.Open()
		if err != nil {
			return err
		}
		defer srcfile.Close()

		intofile, err := os.OpenFile(nameinlocal, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o600)
		if err != nil {
			return err
		}
		defer intofile.Close()

		_, err = io.Copy(intofile, srcfile)
		return err
	})
}
