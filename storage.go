package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// DiskUploader persists identity documents under a local directory. The
// returned URL is a path of the form /files/<bucket>/<name> that the HTTP
// layer serves statically.
type DiskUploader struct {
	Root string
}

var _ Uploader = (*DiskUploader)(nil)

func NewDiskUploader(root string) *DiskUploader {
	return &DiskUploader{Root: root}
}

func (d *DiskUploader) Upload(_ context.Context, bucket, name string, upload Upload) (string, error) {
	clean := sanitizeUploadName(name)
	if clean == "" {
		return "", goerrors.New("upload name is empty", goerrors.CategoryValidation)
	}

	dir := filepath.Join(d.Root, bucket, filepath.Dir(clean))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create upload directory")
	}

	dst := filepath.Join(d.Root, bucket, clean)
	if err := os.WriteFile(dst, upload.Data, 0o644); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write upload")
	}

	return fmt.Sprintf("/files/%s/%s", bucket, clean), nil
}

func sanitizeUploadName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.ToSlash(filepath.Clean("/" + name))
	return strings.TrimPrefix(name, "/")
}

// NoopUploader discards uploads. Used in tests and when document storage is
// not configured.
type NoopUploader struct{}

var _ Uploader = (*NoopUploader)(nil)

func (NoopUploader) Upload(_ context.Context, bucket, name string, _ Upload) (string, error) {
	return fmt.Sprintf("/files/%s/%s", bucket, sanitizeUploadName(name)), nil
}
