// Package mirror copies relocated uploads from the upload directory into an
// S3-compatible bucket. It only reads the directory; nothing in the intake
// pipeline reads the bucket back.
package mirror

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"submission-intake/internal/config"
)

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// NewClient connects to the configured endpoint and checks the bucket exists.
func NewClient(ctx context.Context, cfg config.MirrorConfig) (*minio.Client, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("mirror bucket does not exist: %s", cfg.Bucket)
	}
	return client, nil
}

// Mirror uploads files from dir that the bucket does not hold yet.
type Mirror struct {
	client   *minio.Client
	bucket   string
	prefix   string
	dir      string
	interval time.Duration
	logger   logrus.FieldLogger
}

func New(client *minio.Client, cfg config.MirrorConfig, dir string, logger logrus.FieldLogger) *Mirror {
	return &Mirror{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		dir:      dir,
		interval: cfg.Interval,
		logger:   logger.WithField("service", "mirror"),
	}
}

func (m *Mirror) objectName(file string) string {
	if m.prefix == "" {
		return file
	}
	return path.Join(m.prefix, file)
}

// Sync uploads every regular file missing from the bucket and returns how
// many were copied.
func (m *Mirror) Sync(ctx context.Context) (int, error) {
	present := make(map[string]struct{})
	listPrefix := ""
	if m.prefix != "" {
		listPrefix = m.prefix + "/"
	}
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("list bucket: %w", obj.Err)
		}
		present[obj.Key] = struct{}{}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	copied := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := m.objectName(e.Name())
		if _, ok := present[name]; ok {
			continue
		}
		if _, err := m.client.FPutObject(ctx, m.bucket, name, filepath.Join(m.dir, e.Name()), minio.PutObjectOptions{}); err != nil {
			return copied, fmt.Errorf("put %s: %w", name, err)
		}
		copied++
	}
	return copied, nil
}

// Run syncs immediately and then every interval until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	m.logger.WithFields(logrus.Fields{
		"bucket":   m.bucket,
		"interval": m.interval,
	}).Info("starting")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting_down")
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Mirror) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := m.Sync(ctx)
	log := m.logger.WithFields(logrus.Fields{"copied": n, "ms": time.Since(start).Milliseconds()})
	if err != nil {
		log.WithError(err).Warn("sync failed")
		return
	}
	if n > 0 {
		log.Info("sync complete")
	}
}
