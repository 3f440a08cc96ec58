package upload

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, p.content))
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestReceive_FieldsAndFiles(t *testing.T) {
	rc := NewReceiver(t.TempDir())
	req := multipartRequest(t,
		part{field: "person", content: "Ada"},
		part{field: "email", content: "ada@example.com"},
		part{field: "file", filename: "My CV.pdf", content: "%PDF-1.4"},
	)

	res, err := rc.Receive(context.Background(), req)
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Equal(t, map[string]string{"person": "Ada", "email": "ada@example.com"}, res.Fields)
	f, err := res.File("file")
	require.NoError(t, err)
	assert.Equal(t, "My CV.pdf", f.Filename)
	assert.Equal(t, int64(8), f.Size)
	assert.Equal(t, "application/octet-stream", f.ContentType)

	got, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))
}

func TestReceive_FirstValueWins(t *testing.T) {
	rc := NewReceiver(t.TempDir())
	req := multipartRequest(t,
		part{field: "type", content: "opencall"},
		part{field: "type", content: "candidature"},
	)

	res, err := rc.Receive(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "opencall", res.Fields["type"])
}

func TestReceive_MissingFile(t *testing.T) {
	rc := NewReceiver(t.TempDir())
	res, err := rc.Receive(context.Background(), multipartRequest(t, part{field: "body", content: "x"}))
	require.NoError(t, err)

	_, err = res.File("file")
	assert.True(t, errors.Is(err, ErrNoFile))
	assert.Equal(t, "File is not provided.", err.Error())
}

func TestReceive_NotMultipart(t *testing.T) {
	rc := NewReceiver(t.TempDir())
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := rc.Receive(context.Background(), req)
	assert.True(t, errors.Is(err, ErrNotMultipart))
}

func TestReceive_MalformedBodyRemovesPartialFiles(t *testing.T) {
	dir := t.TempDir()
	rc := NewReceiver(dir)

	body := "--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n\r\n" +
		"hello\r\n" +
		"--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"body\"\r\n\r\n" +
		"truncated without closing boundary"
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XYZ")

	_, err := rc.Receive(context.Background(), req)
	require.Error(t, err)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestReceive_BodyLimit(t *testing.T) {
	rc := NewReceiver(t.TempDir())
	req := multipartRequest(t, part{field: "file", filename: "big.bin", content: strings.Repeat("x", 4096)})
	rr := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rr, req.Body, 512)

	_, err := rc.Receive(context.Background(), req)
	var mbe *http.MaxBytesError
	assert.True(t, errors.As(err, &mbe))
}

func TestResult_Cleanup(t *testing.T) {
	dir := t.TempDir()
	rc := NewReceiver(dir)
	res, err := rc.Receive(context.Background(), multipartRequest(t,
		part{field: "file", filename: "a.txt", content: "a"},
		part{field: "file", filename: "b.txt", content: "b"},
	))
	require.NoError(t, err)
	require.Len(t, res.Files["file"], 2)

	require.NoError(t, res.Cleanup())
	require.NoError(t, res.Cleanup())
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestDestinationName(t *testing.T) {
	r := NewRelocator(t.TempDir()).WithClock(fixedClock(1700000000123))
	tests := []struct {
		orig string
		want string
	}{
		{"cv.pdf", "1700000000123_cv.pdf"},
		{"My Big CV.PDF", "1700000000123_my_big_cv.pdf"},
		{"dir/Nested Name.txt", "1700000000123_nested_name.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.DestinationName(tt.orig), tt.orig)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRelocate_CopiesBytes(t *testing.T) {
	dir := t.TempDir()
	r := NewRelocator(dir)
	src := writeTemp(t, "payload")

	name, err := r.Relocate(context.Background(), src, "Report.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "_report.txt"))

	got, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	_, err = os.Stat(src)
	assert.NoError(t, err, "source must survive a copy")
}

func TestRelocate_SameNameDifferentMillis(t *testing.T) {
	dir := t.TempDir()
	ms := int64(1700000000000)
	r := NewRelocator(dir).WithClock(func() time.Time {
		ms++
		return time.UnixMilli(ms)
	})

	a, err := r.Relocate(context.Background(), writeTemp(t, "first"), "same.txt")
	require.NoError(t, err)
	b, err := r.Relocate(context.Background(), writeTemp(t, "second"), "same.txt")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	gotA, _ := os.ReadFile(filepath.Join(dir, a))
	gotB, _ := os.ReadFile(filepath.Join(dir, b))
	assert.Equal(t, "first", string(gotA))
	assert.Equal(t, "second", string(gotB))
}

func TestRelocate_SameMillisecondOverwrites(t *testing.T) {
	dir := t.TempDir()
	r := NewRelocator(dir).WithClock(fixedClock(1700000000000))

	a, err := r.Relocate(context.Background(), writeTemp(t, "first"), "same.txt")
	require.NoError(t, err)
	b, err := r.Relocate(context.Background(), writeTemp(t, "second"), "same.txt")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := os.ReadFile(filepath.Join(dir, a))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestRelocate_Errors(t *testing.T) {
	r := NewRelocator(filepath.Join(t.TempDir(), "missing-dir"))
	_, err := r.Relocate(context.Background(), writeTemp(t, "x"), "a.txt")
	assert.ErrorContains(t, err, "create destination")

	r = NewRelocator(t.TempDir())
	_, err = r.Relocate(context.Background(), filepath.Join(t.TempDir(), "gone"), "a.txt")
	assert.ErrorContains(t, err, "open upload")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Relocate(ctx, writeTemp(t, "x"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
