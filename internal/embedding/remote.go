package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

// EmbedderPath is the route of the embedding function endpoint.
const EmbedderPath = "/functions/v1/embedder"

const (
	maxErrorBody = 4 << 10
	maxBackoff   = 30 * time.Second
)

// RemoteOptions configures a RemoteEmbedder.
type RemoteOptions struct {
	BaseURL    string
	Credential string
	// Dimensions is the expected vector length. Zero accepts whatever the endpoint returns.
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// RemoteEmbedder calls another instance's embedding endpoint.
type RemoteEmbedder struct {
	url        string
	credential string
	dimensions int
	maxRetries int
	backoff    time.Duration
	client     *http.Client
	logger     *zap.Logger
}

// NewRemoteEmbedder validates opts and returns a client. A missing base URL or credential
// fails with ErrConfiguration before any request is made.
func NewRemoteEmbedder(opts RemoteOptions) (*RemoteEmbedder, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: embedding service URL is not set", errs.ErrConfiguration)
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("%w: embedding service URL %q must be http or https", errs.ErrConfiguration, base)
	}
	if strings.TrimSpace(opts.Credential) == "" {
		return nil, fmt.Errorf("%w: embedding service credential is not set", errs.ErrConfiguration)
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RemoteEmbedder{
		url:        base + EmbedderPath,
		credential: strings.TrimSpace(opts.Credential),
		dimensions: opts.Dimensions,
		maxRetries: maxRetries,
		backoff:    backoff,
		client:     client,
		logger:     logger,
	}, nil
}

// Embed sends text to the endpoint. ErrModelUnavailable is retried with exponential backoff;
// every other failure is returned immediately.
func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(models.EmbedRequest{Text: &text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	for attempt := 0; ; attempt++ {
		vec, err := r.post(ctx, body)
		if err == nil {
			return vec, nil
		}
		if !errs.Retryable(err) || attempt >= r.maxRetries {
			return nil, err
		}
		delay := r.retryDelay(attempt)
		r.logger.Debug("embedding service unavailable, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay doubles the base backoff per attempt, capped at maxBackoff.
func (r *RemoteEmbedder) retryDelay(attempt int) time.Duration {
	delay := r.backoff
	for i := 0; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

func (r *RemoteEmbedder) post(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.credential)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out models.EmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: malformed response: %w", errs.ErrInference, err)
		}
		if out.Length != len(out.Data) {
			return nil, fmt.Errorf("%w: response length %d does not match %d values", errs.ErrInference, out.Length, len(out.Data))
		}
		if r.dimensions > 0 && len(out.Data) != r.dimensions {
			return nil, fmt.Errorf("%w: service returned %d dimensions, expected %d", errs.ErrInference, len(out.Data), r.dimensions)
		}
		return out.Data, nil
	}

	msg, code := readError(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnauthorized, msg)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, msg)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: service returned %d: %s", errs.ErrModelUnavailable, resp.StatusCode, msg)
	}
	if sentinel := errs.FromCode(code); errors.Is(sentinel, errs.ErrModelUnavailable) || errors.Is(sentinel, errs.ErrInference) {
		return nil, fmt.Errorf("%w: %s", sentinel, msg)
	}
	return nil, fmt.Errorf("%w: service returned %d: %s", errs.ErrInference, resp.StatusCode, msg)
}

func readError(body io.Reader) (msg, code string) {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var er models.ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error != "" {
		return er.Error, er.Code
	}
	return strings.TrimSpace(string(data)), ""
}

// Dimensions returns the expected vector length, or 0 when unchecked.
func (r *RemoteEmbedder) Dimensions() int {
	return r.dimensions
}

// Close releases idle connections.
func (r *RemoteEmbedder) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
