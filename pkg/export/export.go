package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidPath is returned for an export path that cannot be written.
var ErrInvalidPath = errors.New("invalid export path")

// Config describes where the issue database is copied after a run.
type Config struct {
	// Path is a local file path or s3://bucket/key.
	Path string

	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// Target is a destination for the database file.
type Target interface {
	// Validate reports ErrInvalidPath when an upload could not succeed.
	Validate(ctx context.Context) error
	Upload(ctx context.Context, src string) error
	String() string
}

// Exporter copies the issue database to its target.
type Exporter struct {
	target Target
	logger logrus.FieldLogger
}

// New builds an Exporter for cfg.Path. An s3:// path gets an S3Target,
// anything else a LocalTarget.
func New(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Exporter, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	var target Target
	if strings.HasPrefix(cfg.Path, "s3://") {
		bucket, key, err := ParseS3URL(cfg.Path)
		if err != nil {
			return nil, err
		}
		t, err := NewS3Target(ctx, cfg, bucket, key)
		if err != nil {
			return nil, err
		}
		target = t
	} else {
		target = &LocalTarget{Path: cfg.Path}
	}
	return NewExporter(target, logger), nil
}

// NewExporter wraps an existing target.
func NewExporter(target Target, logger logrus.FieldLogger) *Exporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{target: target, logger: logger}
}

// Target returns the destination.
func (e *Exporter) Target() Target { return e.target }

// Validate checks the destination before a run starts.
func (e *Exporter) Validate(ctx context.Context) error {
	return e.target.Validate(ctx)
}

// Export copies the database file at src to the target.
func (e *Exporter) Export(ctx context.Context, src string) error {
	if src == "" {
		return errors.New("no database file to export")
	}
	if err := e.target.Upload(ctx, src); err != nil {
		return fmt.Errorf("failed to export to %s: %w", e.target, err)
	}
	e.logger.WithFields(logrus.Fields{"source": src, "target": e.target.String()}).Info("issue database exported")
	return nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q is not an s3 URL", ErrInvalidPath, raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q needs a bucket and an object key", ErrInvalidPath, raw)
	}
	return u.Host, key, nil
}

// LocalTarget writes to a file on disk.
type LocalTarget struct {
	Path string
}

func (t *LocalTarget) String() string { return t.Path }

// Validate requires an existing parent directory and a path that is not a
// directory itself.
func (t *LocalTarget) Validate(context.Context) error {
	dir := filepath.Dir(t.Path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: directory %q does not exist", ErrInvalidPath, dir)
	}
	if info, err := os.Stat(t.Path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", ErrInvalidPath, t.Path)
	}
	return nil
}

// Upload copies src next to the target and renames it into place.
func (t *LocalTarget) Upload(ctx context.Context, src string) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(t.Path), ".somcheck-export-*")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), t.Path)
}
