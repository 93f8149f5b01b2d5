package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/pkg/utils"
)

const defaultLoadTimeout = 2 * time.Minute

// State is the lifecycle state of the model behind a Service.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var errServiceClosed = errors.New("embedding service closed")

// Service wraps a Model that is loaded on first use. Concurrent callers that arrive while the
// model is loading share the same load; a failed load is retried by the next caller.
type Service struct {
	load        Loader
	dimensions  int
	loadTimeout time.Duration
	logger      *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	state   State
	model   Model
	lastErr error
	closed  bool
	loads   atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for model lifecycle events.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithLoadTimeout bounds how long a single model load may take.
func WithLoadTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// NewService creates a service that loads its model lazily with load.
// dimensions is the fixed vector length every embedding must have.
func NewService(load Loader, dimensions int, opts ...ServiceOption) *Service {
	s := &Service{
		load:        load,
		dimensions:  dimensions,
		loadTimeout: defaultLoadTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns the normalized embedding of text. Empty text is valid.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	m, err := s.ensureModel(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := runModel(m, text)
	if err != nil {
		if errors.Is(err, errs.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrInference, err)
	}
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("%w: model returned %d dimensions, expected %d", errs.ErrInference, len(vec), s.dimensions)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	utils.NormalizeL2(out)
	return out, nil
}

// runModel converts a panic inside the backend into an error.
func runModel(m Model, text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Embed(text)
}

// Warm loads the model now instead of on the first Embed call.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.ensureModel(ctx)
	return err
}

// Dimensions returns the embedding dimension.
func (s *Service) Dimensions() int {
	return s.dimensions
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error of the most recent failed load, or nil.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Loads returns how many times the loader has been invoked.
func (s *Service) Loads() int64 {
	return s.loads.Load()
}

// Close releases the model. Later calls fail with ErrModelUnavailable.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.model == nil {
		return nil
	}
	err := s.model.Close()
	s.model = nil
	s.state = StateUninitialized
	return err
}

func (s *Service) ensureModel(ctx context.Context) (Model, error) {
	s.mu.RLock()
	if s.state == StateReady {
		m := s.model
		s.mu.RUnlock()
		return m, nil
	}
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, errServiceClosed)
	}

	// Waiters give up when their own context ends; the load keeps going for the others.
	ch := s.group.DoChan("model", func() (interface{}, error) {
		return s.initialize()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	}
}

func (s *Service) initialize() (Model, error) {
	s.mu.Lock()
	if s.state == StateReady {
		m := s.model
		s.mu.Unlock()
		return m, nil
	}
	s.state = StateInitializing
	s.mu.Unlock()

	s.loads.Add(1)
	s.logger.Info("loading embedding model", zap.Int("dimensions", s.dimensions))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
	defer cancel()
	m, err := s.load(ctx)
	if err == nil && m.Dimensions() != s.dimensions {
		_ = m.Close()
		err = fmt.Errorf("model produces %d dimensions, configured %d", m.Dimensions(), s.dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.logger.Warn("embedding model load failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if errors.Is(err, errs.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, err)
	}
	if s.closed {
		_ = m.Close()
		s.state = StateUninitialized
		return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, errServiceClosed)
	}
	s.state = StateReady
	s.model = m
	s.lastErr = nil
	s.logger.Info("embedding model ready", zap.Duration("elapsed", time.Since(start)))
	return m, nil
}
