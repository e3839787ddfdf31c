package liveness

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

// ErrLiveness wraps every failed liveness request.
var ErrLiveness = errors.New("liveness request failed")

// DefaultTimeout bounds one request including the body transfer.
const DefaultTimeout = 3 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

const userAgent = "certwatch/1.0 (Liveness Check)"

// Checker issues timed GET requests.
type Checker struct {
	strict   *http.Transport
	insecure *http.Transport
}

func NewChecker() *Checker {
	return &Checker{
		strict:   newTransport(false),
		insecure: newTransport(true),
	}
}

func newTransport(skipVerify bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipVerify}
	// Compression is negotiated and decoded below.
	t.DisableCompression = true
	return t
}

// Check requests url and reports status and total latency. With trustCert
// set, invalid server certificates are accepted.
func (c *Checker) Check(ctx context.Context, url string, trustCert bool, timeout time.Duration) models.LivenessResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := c.strict
	if trustCert {
		transport = c.insecure
	}
	client := &http.Client{Timeout: timeout, Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.LivenessResult{Err: fmt.Errorf("%w: %v", ErrLiveness, err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return models.LivenessResult{
			Latency: time.Since(start),
			Err:     fmt.Errorf("%w: %v", ErrLiveness, err),
		}
	}
	defer resp.Body.Close()

	result := models.LivenessResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}

	n, err := drain(resp)
	result.Latency = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("%w: reading body: %v", ErrLiveness, err)
		return result
	}

	logger.GetFromContext(ctx, logger.Get()).Debug("liveness checked",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.String("content_encoding", resp.Header.Get("Content-Encoding")),
		slog.Int64("body_bytes", n),
		slog.Duration("latency", result.Latency))

	return result
}

// drain reads the decoded body so latency covers the whole transfer.
func drain(resp *http.Response) (int64, error) {
	var body io.Reader = io.LimitReader(resp.Body, maxBody)

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, err
		}
		defer zr.Close()
		body = zr
	case "br":
		body = brotli.NewReader(body)
	}

	return io.Copy(io.Discard, io.LimitReader(body, maxBody))
}
