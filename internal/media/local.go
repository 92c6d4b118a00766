package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalPrefix is the URL path under which local photos are served.
const LocalPrefix = "/uploads/"

// Local writes photos into a directory served by the HTTP layer.
type Local struct {
	dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir returns the directory photos are written to.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if !Allowed(contentType) {
		return "", ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	object, err := objectName(name)
	if err != nil {
		return "", fmt.Errorf("name upload: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, object), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close upload: %w", err)
	}
	return LocalPrefix + object, nil
}

func (l *Local) Remove(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, LocalPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(ref, LocalPrefix))
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
