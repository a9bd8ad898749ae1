package logger

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// lokiLoggingTransport traces Loki pushes to stderr. It is only installed at
// debug level and must not log through zap, or every push would trigger another.
type lokiLoggingTransport struct {
	base http.RoundTripper
	out  io.Writer
}

func NewLokiLoggingTransport() http.RoundTripper {
	return &lokiLoggingTransport{
		base: http.DefaultTransport,
		out:  os.Stderr,
	}
}

// RoundTrip implements http.RoundTripper interface with logging
func (t *lokiLoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	bodySize := 0
	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err == nil {
			bodySize = len(bodyBytes)
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(t.out, "[loki] push failed: url=%s size=%d duration=%v error=%v\n",
			req.URL.String(), bodySize, duration, err)
		return nil, err
	}

	fmt.Fprintf(t.out, "[loki] push: url=%s size=%d status=%d duration=%v\n",
		req.URL.String(), bodySize, resp.StatusCode, duration)

	if resp.StatusCode >= 400 && resp.Body != nil {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			fmt.Fprintf(t.out, "[loki] error body: %s\n", formatBodyPreview(bodyBytes, 200))
		}
	}

	return resp, nil
}

// formatBodyPreview collapses whitespace and truncates to maxLen.
func formatBodyPreview(body []byte, maxLen int) string {
	if len(body) == 0 {
		return "(empty)"
	}

	preview := strings.Join(strings.Fields(string(body)), " ")
	if len(preview) > maxLen {
		preview = preview[:maxLen] + "..."
	}
	return preview
}
