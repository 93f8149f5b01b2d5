// Package endpoint implements the embedding function: a bearer-authenticated request carrying
// {"text": ...} is answered with {"data": [...], "length": n}. It has no HTTP framework
// dependency; internal/server adapts it to chi.
package endpoint

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

const defaultMaxBodyBytes = 64 << 10

// Embedder is the part of embedding.Embedder the endpoint needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is an incoming call: the raw Authorization header and the request body.
type Request struct {
	Authorization string
	Body          io.Reader
}

// Response is the status and JSON body to send back.
type Response struct {
	Status int
	Body   []byte
}

// Endpoint serves embedding requests.
type Endpoint struct {
	embedder   Embedder
	credential []byte
	limiter    *rate.Limiter
	maxBody    int64
	logger     *zap.Logger
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithRateLimit allows r requests per second with the given burst. r <= 0 disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(e *Endpoint) {
		if r <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMaxBodyBytes caps the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Endpoint) {
		if n > 0 {
			e.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Endpoint) { e.logger = l }
}

// New creates an endpoint that accepts only "Bearer <credential>". An empty credential rejects every request.
func New(embedder Embedder, credential string, opts ...Option) *Endpoint {
	e := &Endpoint{
		embedder:   embedder,
		credential: []byte(credential),
		maxBody:    defaultMaxBodyBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one request. Authentication happens before anything else, so a rejected
// request never reaches the model.
func (e *Endpoint) Handle(ctx context.Context, req Request) Response {
	if !e.authorized(req.Authorization) {
		return errorResponse(http.StatusUnauthorized, "unauthorized", errs.CodeUnauthorized)
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return errorResponse(http.StatusTooManyRequests, "rate limit exceeded", "rate_limited")
	}

	text, err := e.decode(req.Body)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error(), errs.CodeInvalidInput)
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		code := errs.Code(err)
		if code != errs.CodeModelUnavailable && code != errs.CodeCanceled {
			code = errs.CodeInference
		}
		e.logger.Error("embedding failed", zap.String("code", code), zap.Error(err))
		return errorResponse(http.StatusInternalServerError, err.Error(), code)
	}

	body, err := json.Marshal(models.EmbedResponse{Data: vec, Length: len(vec)})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to encode response", errs.CodeInference)
	}
	return Response{Status: http.StatusOK, Body: body}
}

func (e *Endpoint) authorized(header string) bool {
	if len(e.credential) == 0 {
		return false
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), e.credential) == 1
}

func (e *Endpoint) decode(body io.Reader) (string, error) {
	if body == nil {
		return "", errors.New("request body is required")
	}
	data, err := io.ReadAll(io.LimitReader(body, e.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > e.maxBody {
		return "", fmt.Errorf("request body exceeds %d bytes", e.maxBody)
	}
	var req models.EmbedRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Text == nil {
		return "", errors.New("text field is required")
	}
	return *req.Text, nil
}

func errorResponse(status int, msg, code string) Response {
	body, _ := json.Marshal(models.ErrorResponse{Error: msg, Code: code})
	return Response{Status: status, Body: body}
}
