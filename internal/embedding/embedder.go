// Package embedding turns text into fixed-length vectors: a lazily loaded local model
// (ONNX or mock) behind Service, or a remote embedding endpoint.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Model is a loaded inference backend. Implementations must be safe for concurrent use.
type Model interface {
	Embed(text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Loader creates a Model. It is called at most once per successful initialization.
type Loader func(ctx context.Context) (Model, error)

// ONNXOptions configures the local ONNX model.
type ONNXOptions struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
	// OutputName is the pooled output tensor name; defaults to "output".
	OutputName string
}

func (o ONNXOptions) outputName() string {
	if o.OutputName == "" {
		return "output"
	}
	return o.OutputName
}
