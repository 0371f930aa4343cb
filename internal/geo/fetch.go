package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher downloads a raw boundary archive (shapefile zip or GeoJSON).
type Fetcher struct {
	httpClient *http.Client
	retries    int
}

func NewFetcher(timeout time.Duration, retries int) *Fetcher {
	if retries <= 0 {
		retries = 1
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
	}
}

// Fetch writes the body served at url to dest and returns the byte count.
// The destination is replaced only after a complete download.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(250*(1<<(attempt-2))+rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		n, retry, err := f.download(ctx, url, dest)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return 0, err
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("url", url).Msg("boundary download failed")
	}

	if lastErr == nil {
		lastErr = errors.New("boundary download failed")
	}
	return 0, lastErr
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, isRetryableStatus(resp.StatusCode), fmt.Errorf("boundary source status=%d body=%s", resp.StatusCode, string(body))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, false, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, true, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, false, err
	}
	return n, false, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
