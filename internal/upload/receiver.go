// Package upload parses multipart submission bodies into transient files and
// copies accepted files into the upload directory.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
)

var (
	// ErrNoFile is returned when a required file part is absent.
	ErrNoFile = errors.New("File is not provided.")
	// ErrNotMultipart is returned for bodies that are not multipart/form-data.
	ErrNotMultipart = errors.New("request is not multipart/form-data")
	// ErrFieldTooLarge is returned when a non-file field exceeds MaxFieldBytes.
	ErrFieldTooLarge = errors.New("form field too large")
)

// MaxFieldBytes bounds a single non-file form value.
const MaxFieldBytes = 1 << 20

// File is a file part written to the transient directory.
type File struct {
	Field       string
	Filename    string
	Path        string
	Size        int64
	ContentType string
}

// Result is a parsed multipart body. Fields keeps the first value seen for
// each name.
type Result struct {
	Fields map[string]string
	Files  map[string][]File
}

// File returns the first file submitted under field.
func (r *Result) File(field string) (File, error) {
	files := r.Files[field]
	if len(files) == 0 {
		return File{}, ErrNoFile
	}
	return files[0], nil
}

// Cleanup removes every transient file. It is safe to call more than once.
func (r *Result) Cleanup() error {
	var errs []error
	for _, files := range r.Files {
		for _, f := range files {
			if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Receiver turns multipart requests into a Result.
type Receiver struct {
	// TempDir receives file parts; empty means os.TempDir().
	TempDir string
}

func NewReceiver(tempDir string) *Receiver {
	return &Receiver{TempDir: tempDir}
}

// Receive consumes the whole body of r. On error every file written so far
// is removed.
func (rc *Receiver) Receive(ctx context.Context, r *http.Request) (*Result, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, ErrNotMultipart
		}
		return nil, fmt.Errorf("read multipart body: %w", err)
	}

	res := &Result{
		Fields: make(map[string]string),
		Files:  make(map[string][]File),
	}
	fail := func(err error) (*Result, error) {
		_ = res.Cleanup()
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("parse multipart body: %w", err))
		}

		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		if part.FileName() == "" {
			value, err := readField(part)
			_ = part.Close()
			if err != nil {
				return fail(fmt.Errorf("field %q: %w", name, err))
			}
			if _, seen := res.Fields[name]; !seen {
				res.Fields[name] = value
			}
			continue
		}

		f, err := rc.saveFile(part)
		_ = part.Close()
		if err != nil {
			return fail(fmt.Errorf("file %q: %w", name, err))
		}
		res.Files[name] = append(res.Files[name], f)
	}

	return res, nil
}

func readField(r io.Reader) (string, error) {
	buf, err := io.ReadAll(io.LimitReader(r, MaxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(buf) > MaxFieldBytes {
		return "", ErrFieldTooLarge
	}
	return string(buf), nil
}

func (rc *Receiver) saveFile(part *multipart.Part) (File, error) {
	tmp, err := os.CreateTemp(rc.TempDir, "intake-*")
	if err != nil {
		return File{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, part)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return File{}, fmt.Errorf("write temp file: %w", err)
	}
	return File{
		Field:       part.FormName(),
		Filename:    part.FileName(),
		Path:        tmp.Name(),
		Size:        n,
		ContentType: part.Header.Get("Content-Type"),
	}, nil
}
