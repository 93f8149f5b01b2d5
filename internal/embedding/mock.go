package embedding

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockModel is a deterministic bag-of-words model for tests and offline use. Each word is hashed
// into a signed bucket, so texts that share words get similar vectors and identical texts get
// identical vectors.
type MockModel struct {
	dimensions int
	calls      atomic.Int64

	mu   sync.Mutex
	fail error
}

// NewMockModel returns a mock model producing vectors of the given dimensions.
func NewMockModel(dimensions int) *MockModel {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockModel{dimensions: dimensions}
}

// Embed returns the un-normalized bag-of-words vector of text.
func (m *MockModel) Embed(text string) ([]float32, error) {
	m.calls.Add(1)
	m.mu.Lock()
	fail := m.fail
	m.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	emb := make([]float32, m.dimensions)
	for i := range emb {
		emb[i] = 0.01
	}
	for _, w := range Words(text) {
		h := HashString(w)
		bucket := h % m.dimensions
		if (h/m.dimensions)%2 == 0 {
			emb[bucket]++
		} else {
			emb[bucket]--
		}
	}
	return emb, nil
}

// FailWith makes subsequent Embed calls return err. Pass nil to recover.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Calls returns how many times Embed has run.
func (m *MockModel) Calls() int64 {
	return m.calls.Load()
}

func (m *MockModel) Dimensions() int {
	return m.dimensions
}

func (m *MockModel) Close() error {
	return nil
}

// MockLoader returns a Loader that hands out m.
func MockLoader(m *MockModel) Loader {
	return func(context.Context) (Model, error) {
		return m, nil
	}
}

// NewMockEmbedder returns a Service backed by a fresh MockModel.
func NewMockEmbedder(dimensions int) *Service {
	m := NewMockModel(dimensions)
	return NewService(MockLoader(m), m.Dimensions())
}
