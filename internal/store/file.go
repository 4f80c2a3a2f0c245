package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FileSink writes documents to <dir>/<folder>/<name>.
type FileSink struct {
	dir string
}

// NewFileSink returns a FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// WriteDocument replaces the named file atomically.
func (f *FileSink) WriteDocument(ctx context.Context, folder, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "file sink: context cancelled")
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return eris.Errorf("file sink: invalid document name %q", name)
	}

	dir := filepath.Join(f.dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "file sink: create folder %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return eris.Wrap(err, "file sink: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(body); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "file sink: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "file sink: close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return eris.Wrapf(err, "file sink: replace %s", name)
	}
	return nil
}

// Location implements Sink.
func (f *FileSink) Location() string {
	return f.dir
}
