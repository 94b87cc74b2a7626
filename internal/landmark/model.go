package landmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"drowsydetect/pkg/log"
)

// ErrModelUnavailable means every configured mirror failed.
var ErrModelUnavailable = errors.New("could not download landmark model from any mirror")

// EnsureModel makes sure the face_landmarker.task file the sidecar loads
// exists at path, downloading it from the first mirror that works. Each
// mirror gets a few attempts with exponential backoff before the next one
// is tried.
func EnsureModel(ctx context.Context, path string, urls []string) error {
	if info, err := os.Stat(path); err == nil {
		log.Info(log.Fields{
			"path":    path,
			"size_mb": fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)),
		}, "landmark model found")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, url := range urls {
		log.Info(log.Fields{"url": url}, "attempting model download")

		backoff := retry.WithMaxRetries(2, retry.NewExponential(2*time.Second))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := downloadFile(ctx, url, path); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			log.Warn(log.Fields{"url": url, "error": err.Error()}, "model download failed")
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		log.Info(log.Fields{
			"path":    path,
			"size_mb": fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)),
		}, "landmark model downloaded")
		return nil
	}

	log.Error(log.Fields{"path": path}, "could not download model from any mirror, download manually from one of:")
	for _, url := range urls {
		log.Error(log.Fields{"url": url}, "model mirror")
	}
	return ErrModelUnavailable
}

func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	tmp := path + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
