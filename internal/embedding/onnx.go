//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/roomfinder/internal/errs"
)

var ortInit sync.Mutex

// onnxModel runs a sentence-embedding model with ONNX Runtime. It requires CGO and the onnxruntime shared library.
type onnxModel struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXLoader returns a Loader that opens the model at opts.ModelPath.
// Runtime or file problems are reported as ErrModelUnavailable.
func NewONNXLoader(opts ONNXOptions) Loader {
	return func(ctx context.Context) (Model, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, err)
		}
		if _, err := os.Stat(opts.ModelPath); err != nil {
			return nil, fmt.Errorf("%w: model file: %w", errs.ErrModelUnavailable, err)
		}
		m, err := newONNXModel(opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrModelUnavailable, err)
		}
		return m, nil
	}
}

func newONNXModel(opts ONNXOptions) (*onnxModel, error) {
	ortInit.Lock()
	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInit.Unlock()
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	ortInit.Unlock()

	maxTokens := opts.MaxTokens
	if maxTokens < 2 {
		maxTokens = 256
	}
	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(opts.Dimensions)), make([]float32, opts.Dimensions))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{opts.outputName()},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxModel{
		session:             session,
		dimensions:          opts.Dimensions,
		maxTokens:           maxTokens,
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Embed runs one inference. The session tensors are shared, so calls are serialized.
func (m *onnxModel) Embed(text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("%w: session closed", errs.ErrModelUnavailable)
	}

	inputIDs, attentionMask, tokenTypeIDs := m.tokenizer.Tokenize(text, m.maxTokens)
	copy(m.inputIDsTensor.GetData(), inputIDs)
	copy(m.attentionMaskTensor.GetData(), attentionMask)
	copy(m.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, m.dimensions)
	copy(out, m.outputTensor.GetData())
	return out, nil
}

func (m *onnxModel) Dimensions() int {
	return m.dimensions
}

// Close destroys the session and tensors.
func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	for _, t := range []interface{ Destroy() error }{m.inputIDsTensor, m.attentionMaskTensor, m.tokenTypeIDsTensor, m.outputTensor} {
		_ = t.Destroy()
	}
	m.inputIDsTensor, m.attentionMaskTensor, m.tokenTypeIDsTensor, m.outputTensor = nil, nil, nil, nil
	return err
}
