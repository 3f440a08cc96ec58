package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Relocator copies transient uploads into the upload directory under a
// timestamped name. Two uploads of the same name within one millisecond
// share a destination and the later copy wins.
type Relocator struct {
	dir string
	now func() time.Time
}

func NewRelocator(dir string) *Relocator {
	return &Relocator{dir: dir, now: time.Now}
}

// WithClock returns a copy of r that reads the time from now.
func (r *Relocator) WithClock(now func() time.Time) *Relocator {
	c := *r
	c.now = now
	return &c
}

// Dir is the upload directory.
func (r *Relocator) Dir() string {
	return r.dir
}

// DestinationName is "<unix millis>_<name>" where name is the lowercased
// base of orig with spaces replaced by underscores.
func (r *Relocator) DestinationName(orig string) string {
	name := strings.ReplaceAll(strings.ToLower(filepath.Base(orig)), " ", "_")
	return fmt.Sprintf("%d_%s", r.now().UnixMilli(), name)
}

// Relocate copies srcPath into the upload directory and returns the
// destination name. The source is left in place. A failed copy may leave a
// partial destination file behind.
func (r *Relocator) Relocate(ctx context.Context, srcPath, orig string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := r.DestinationName(orig)
	dst, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close destination: %w", err)
	}
	return name, nil
}
