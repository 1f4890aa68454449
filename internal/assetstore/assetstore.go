// Package assetstore downloads remote generation results into a
// project-scoped directory, writes their sidecar metadata, and reports
// per-project disk usage. Downloads retry with exponential backoff and
// jitter; batches are bounded by a semaphore rather than left to run
// unbounded.
package assetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/models"
)

const (
	downloadTimeout = 120 * time.Second
	maxRetries      = 4
	baseRetryDelay  = 1 * time.Second
	maxRetryDelay   = 30 * time.Second

	defaultMaxConcurrent = 5
	maxConcurrentCap     = 10
)

// Store downloads remote asset URLs into <storageDir>/projects/<project_id>/assets.
type Store struct {
	storageDir string
	client     *http.Client
}

// New constructs a Store rooted at storageDir (the settings-resolved
// storage root, not the project directory itself).
func New(storageDir string) *Store {
	return &Store{
		storageDir: storageDir,
		client:     &http.Client{Timeout: downloadTimeout},
	}
}

// ProjectDir returns <storageDir>/projects/<project_id>.
func (s *Store) ProjectDir(projectID uuid.UUID) string {
	return filepath.Join(s.storageDir, "projects", projectID.String())
}

// sidecar is the JSON metadata written alongside every downloaded asset.
type sidecar struct {
	AssetID      string    `json:"asset_id"`
	URL          string    `json:"url"`
	LocalPath    string    `json:"local_path"`
	Kind         string    `json:"kind"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func extensionFor(kind models.AssetKind) string {
	switch kind {
	case models.AssetKindImage:
		return "png"
	case models.AssetKindVideo:
		return "mp4"
	case models.AssetKindAudio, models.AssetKindMusic, models.AssetKindSpeech:
		return "mp3"
	default:
		return "bin"
	}
}

// Download fetches url into <project_dir>/assets/<asset_id>.<ext> and writes
// the sidecar JSON, returning the local path.
func (s *Store) Download(ctx context.Context, projectID, assetID uuid.UUID, kind models.AssetKind, url string) (string, error) {
	assetsDir := filepath.Join(s.ProjectDir(projectID), "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return "", apierr.System("failed to create assets directory", err.Error())
	}

	localPath := filepath.Join(assetsDir, fmt.Sprintf("%s.%s", assetID.String(), extensionFor(kind)))

	data, err := s.fetchWithRetry(ctx, url)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", apierr.System("failed to write downloaded asset", err.Error())
	}

	side := sidecar{
		AssetID:      assetID.String(),
		URL:          url,
		LocalPath:    localPath,
		Kind:         string(kind),
		Size:         int64(len(data)),
		DownloadedAt: time.Now(),
	}
	sideData, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return "", apierr.System("failed to marshal asset sidecar", err.Error())
	}
	sidecarPath := filepath.Join(assetsDir, assetID.String()+".json")
	if err := os.WriteFile(sidecarPath, sideData, 0o644); err != nil {
		return "", apierr.System("failed to write asset sidecar", err.Error())
	}

	return localPath, nil
}

// DownloadItem is one unit of work for DownloadMany.
type DownloadItem struct {
	AssetID uuid.UUID
	Kind    models.AssetKind
	URL     string
}

// DownloadResult pairs an item with its outcome; per-item failures are
// returned here rather than aborting the whole batch.
type DownloadResult struct {
	AssetID   uuid.UUID
	LocalPath string
	Err       error
}

// DownloadMany downloads a batch concurrently, bounded by maxConcurrent
// (clamped to [1, 10], defaulting to 5 when 0 is passed).
func (s *Store) DownloadMany(ctx context.Context, projectID uuid.UUID, items []DownloadItem, maxConcurrent int) []DownloadResult {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if maxConcurrent > maxConcurrentCap {
		maxConcurrent = maxConcurrentCap
	}

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	results := make([]DownloadResult, len(items))

	done := make(chan struct{})
	for i := range items {
		i := i
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = DownloadResult{AssetID: items[i].AssetID, Err: err}
				done <- struct{}{}
				return
			}
			defer sem.Release(1)

			path, err := s.Download(ctx, projectID, items[i].AssetID, items[i].Kind, items[i].URL)
			results[i] = DownloadResult{AssetID: items[i].AssetID, LocalPath: path, Err: err}
			done <- struct{}{}
		}()
	}
	for range items {
		<-done
	}

	return results
}

// StorageUsage returns the recursive byte sum under a project's directory.
func (s *Store) StorageUsage(projectID uuid.UUID) (int64, error) {
	var total int64
	root := s.ProjectDir(projectID)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, apierr.System("failed to compute storage usage", err.Error())
	}
	return total, nil
}

// fetchWithRetry applies the retry/backoff policy around a single GET,
// treating 429/408/502/503/504 and transient network errors as retryable.
func (s *Store) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return nil, apierr.System("failed to build download request", err.Error())
		}

		resp, err := s.client.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			if isRetryableError(err) {
				continue
			}
			return nil, apierr.System("download failed", err.Error())
		}

		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			if err != nil {
				lastErr = err
				continue
			}
			return data, nil
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		lastErr = fmt.Errorf("download failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if isRetryableStatus(resp.StatusCode) {
			continue
		}
		return nil, apierr.API(lastErr.Error(), apierr.SubClassDownstreamPermanent, false)
	}

	return nil, apierr.API(fmt.Sprintf("download failed after %d attempts: %v", maxRetries+1, lastErr), apierr.SubClassDownstreamTransient, false)
}

func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "EOF")
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
