package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	ServiceName string
	Environment string
	Level       string
	// LokiURL enables the Loki push sink when set.
	LokiURL string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

// New builds the process logger: console output in development, JSON in
// production, teed into Loki when a push URL is configured.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var stdoutEncoder zapcore.Encoder
	if opts.Environment == "production" {
		stdoutEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		stdoutEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
	}

	if opts.LokiURL != "" {
		lokiConfig := zap.NewProductionEncoderConfig()
		lokiConfig.TimeKey = "ts"
		lokiConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		client := &http.Client{Timeout: 10 * time.Second}
		if level == zapcore.DebugLevel {
			client.Transport = NewLokiLoggingTransport()
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(lokiConfig),
			newLokiWriter(opts, client),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// lokiWriter ships every encoded entry to Loki in the background. Sync
// waits for the pushes in flight.
type lokiWriter struct {
	url    string
	client *http.Client
	labels map[string]string
	wg     sync.WaitGroup
}

func newLokiWriter(opts Options, client *http.Client) *lokiWriter {
	return &lokiWriter{
		url:    opts.LokiURL,
		client: client,
		labels: map[string]string{
			"service_name": opts.ServiceName,
			"environment":  opts.Environment,
			"job":          opts.ServiceName + "-api",
		},
	}
}

// Write implements io.Writer
func (w *lokiWriter) Write(p []byte) (int, error) {
	// zap reuses p after Write returns.
	line := make([]byte, len(p))
	copy(line, p)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.push(time.Now(), line)
	}()

	return len(p), nil
}

func (w *lokiWriter) push(ts time.Time, line []byte) {
	body, err := json.Marshal(lokiPushRequest{
		Streams: []lokiStream{{
			Stream: w.streamLabels(line),
			Values: [][]string{{strconv.FormatInt(ts.UnixNano(), 10), string(bytes.TrimRight(line, "\n"))}},
		}},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal loki request: %v\n", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create loki request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	// Errors go to stderr; logging them through zap would loop.
	resp, err := w.client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to send log to loki: %v\n", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "loki returned error: %d\n", resp.StatusCode)
	}
}

// streamLabels adds low-cardinality fields of the entry to the static labels.
// The raw path is left out because short keys would explode the label set.
func (w *lokiWriter) streamLabels(line []byte) map[string]string {
	labels := make(map[string]string, len(w.labels)+4)
	for k, v := range w.labels {
		labels[k] = v
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(line, &entry); err != nil {
		return labels
	}
	for _, key := range []string{"level", "component", "method"} {
		if v, ok := entry[key].(string); ok && v != "" {
			labels[key] = v
		}
	}
	if status, ok := entry["status"].(float64); ok {
		labels["status"] = strconv.Itoa(int(status))
	}
	return labels
}

// Sync implements zapcore.WriteSyncer
func (w *lokiWriter) Sync() error {
	w.wg.Wait()
	return nil
}

// Shutdown flushes logger, giving in-flight Loki pushes until ctx is done.
func Shutdown(ctx context.Context, logger *zap.Logger) error {
	done := make(chan error, 1)
	go func() { done <- logger.Sync() }()

	select {
	case <-done:
		// stdout sync fails on terminals and pipes; nothing to act on.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
