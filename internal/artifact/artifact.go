// Package artifact stores job outputs under stable keys.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned for keys with no stored object.
var ErrNotFound = errors.New("artifact not found")

// Object describes a stored artifact.
type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Store persists artifacts by key. Keys are slash-separated relative paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Close() error
}

// JobPrefix is the key prefix shared by every artifact of a job.
func JobPrefix(jobID string) string { return "jobs/" + jobID + "/" }

func SourceKey(jobID, name string) string {
	return JobPrefix(jobID) + "source/" + path.Base(strings.ReplaceAll(name, `\`, "/"))
}

func SlidesPDFKey(jobID string) string { return JobPrefix(jobID) + "slides/slides.pdf" }

func SlideImageKey(jobID string, index int) string {
	return fmt.Sprintf("%sslides/slide-%03d.png", JobPrefix(jobID), index)
}

func ClipKey(jobID string, index int) string {
	return fmt.Sprintf("%saudio/clip-%03d.wav", JobPrefix(jobID), index)
}

func VideoKey(jobID string) string { return JobPrefix(jobID) + "video/video.mp4" }

// PutFile uploads the file at p under key.
func PutFile(ctx context.Context, s Store, key, p string) (Object, error) {
	f, err := os.Open(p)
	if err != nil {
		return Object{}, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()
	return s.Put(ctx, key, f)
}

// validKey rejects absolute keys and keys that escape the store root.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid artifact key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("invalid artifact key %q", key)
		}
	}
	return nil
}
