// Package httpclient provides the retrying, resumable download client used
// by the pack installer.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultRetryCount = 3
	defaultRetryBase  = 2 * time.Second

	// progressInterval throttles progress callbacks; the final value is
	// always flushed regardless.
	progressInterval = 250 * time.Millisecond

	copyBufferSize = 32 * 1024
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.StatusCode)
}

// ProgressFunc receives download progress. total is -1 when the server did
// not report a content length.
type ProgressFunc func(downloaded, total int64)

// Client downloads pack archives with retries and Range-based resume.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a download client. Pass nil to use a tuned default.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	return &Client{httpClient: httpClient}
}

// Download fetches url into destPath. A leftover partial file at destPath
// triggers a Range request: a 206 response appends to it, a 200 restarts
// from zero. Transport failures are retried with backoff; a non-success
// status returns *StatusError without retrying.
func (c *Client) Download(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	var lastErr error
	for attempt := 0; attempt < defaultRetryCount; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.downloadOnce(ctx, url, destPath, progress)
		if err == nil {
			return nil
		}
		// A definitive server answer is not worth retrying.
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return err
		}
		lastErr = err

		backoff := time.NewTimer(time.Duration(attempt+1) * defaultRetryBase)
		select {
		case <-ctx.Done():
			backoff.Stop()
			return ctx.Err()
		case <-backoff.C:
		}
	}
	return lastErr
}

func (c *Client) downloadOnce(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	var resumeFrom int64
	if fi, statErr := os.Stat(destPath); statErr == nil && fi.Size() > 0 {
		resumeFrom = fi.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out *os.File
	switch resp.StatusCode {
	case http.StatusPartialContent:
		out, err = os.OpenFile(destPath, os.O_WRONLY|os.O_APPEND, 0644)
	case http.StatusOK:
		resumeFrom = 0
		out, err = os.Create(destPath)
	default:
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if err != nil {
		return err
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = resumeFrom + resp.ContentLength
	}

	copyErr := copyWithProgress(out, resp.Body, resumeFrom, total, progress)
	if cerr := out.Close(); copyErr == nil {
		copyErr = cerr
	}
	return copyErr
}

func copyWithProgress(dst io.Writer, src io.Reader, downloaded, total int64, progress ProgressFunc) error {
	buf := make([]byte, copyBufferSize)
	lastEmit := time.Time{}

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			downloaded += int64(n)
			if progress != nil && time.Since(lastEmit) >= progressInterval {
				progress(downloaded, total)
				lastEmit = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	// Force-flush the final value so throttling never loses the last state.
	if progress != nil {
		progress(downloaded, total)
	}
	return nil
}
