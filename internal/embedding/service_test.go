package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/roomfinder/internal/errs"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestService_ConcurrentFirstCallsLoadOnce(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	model := NewMockModel(16)
	svc := NewService(func(ctx context.Context) (Model, error) {
		loads.Add(1)
		<-release
		return model, nil
	}, 16)

	const callers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Embed(context.Background(), "quiet room")
			errCh <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("loader ran %d times, want 1", got)
	}
	if svc.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", svc.Loads())
	}
	if svc.State() != StateReady {
		t.Errorf("State() = %v, want ready", svc.State())
	}
}

func TestService_EmptyTextIsDefined(t *testing.T) {
	svc := NewMockEmbedder(32)
	vec, err := svc.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed(\"\"): %v", err)
	}
	if len(vec) != 32 {
		t.Errorf("len = %d, want 32", len(vec))
	}
	if n := norm(vec); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestService_FixedDimensionsAndDeterminism(t *testing.T) {
	svc := NewMockEmbedder(24)
	ctx := context.Background()
	for _, text := range []string{"a", "boardroom with projector", "Room 4.12, east wing, 40 seats"} {
		a, err := svc.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		b, _ := svc.Embed(ctx, text)
		if len(a) != 24 {
			t.Errorf("Embed(%q) len = %d", text, len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Embed(%q) is not deterministic at %d", text, i)
			}
		}
	}
}

func TestService_RetriesAfterFailedLoad(t *testing.T) {
	var attempts int
	model := NewMockModel(8)
	svc := NewService(func(ctx context.Context) (Model, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("runtime missing")
		}
		return model, nil
	}, 8)

	_, err := svc.Embed(context.Background(), "x")
	if !errors.Is(err, errs.ErrModelUnavailable) {
		t.Fatalf("first Embed error = %v, want ErrModelUnavailable", err)
	}
	if svc.State() != StateFailed {
		t.Errorf("State() = %v, want failed", svc.State())
	}
	if svc.LastError() == nil {
		t.Error("LastError() should record the load failure")
	}

	if _, err := svc.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if svc.State() != StateReady || svc.Loads() != 2 {
		t.Errorf("state=%v loads=%d, want ready/2", svc.State(), svc.Loads())
	}
}

func TestService_ModelDimensionMismatch(t *testing.T) {
	svc := NewService(MockLoader(NewMockModel(8)), 16)
	_, err := svc.Embed(context.Background(), "x")
	if !errors.Is(err, errs.ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
}

func TestService_InferenceError(t *testing.T) {
	model := NewMockModel(8)
	svc := NewService(MockLoader(model), 8)
	model.FailWith(errors.New("bad tensor"))

	_, err := svc.Embed(context.Background(), "x")
	if !errors.Is(err, errs.ErrInference) {
		t.Fatalf("error = %v, want ErrInference", err)
	}
	if errs.Retryable(err) {
		t.Error("inference errors must not be retryable")
	}

	model.FailWith(nil)
	if _, err := svc.Embed(context.Background(), "x"); err != nil {
		t.Errorf("Embed after recovery: %v", err)
	}
}

type panicModel struct{}

func (panicModel) Embed(string) ([]float32, error) { panic("onnx crashed") }
func (panicModel) Dimensions() int                 { return 4 }
func (panicModel) Close() error                    { return nil }

func TestService_PanicBecomesInferenceError(t *testing.T) {
	svc := NewService(func(context.Context) (Model, error) { return panicModel{}, nil }, 4)
	_, err := svc.Embed(context.Background(), "x")
	if !errors.Is(err, errs.ErrInference) {
		t.Errorf("error = %v, want ErrInference", err)
	}
}

func TestService_WaiterHonoursContext(t *testing.T) {
	release := make(chan struct{})
	model := NewMockModel(4)
	svc := NewService(func(ctx context.Context) (Model, error) {
		<-release
		return model, nil
	}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Embed(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}

	close(release)
	if _, err := svc.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed after load: %v", err)
	}
	if svc.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1; the abandoned load should be reused", svc.Loads())
	}
}

func TestService_Warm(t *testing.T) {
	model := NewMockModel(4)
	svc := NewService(MockLoader(model), 4)
	if svc.State() != StateUninitialized {
		t.Fatalf("State() = %v before warm", svc.State())
	}
	if err := svc.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if svc.State() != StateReady {
		t.Errorf("State() = %v after warm", svc.State())
	}
	if model.Calls() != 0 {
		t.Errorf("Warm should not run inference, got %d calls", model.Calls())
	}
}

func TestService_Close(t *testing.T) {
	svc := NewMockEmbedder(4)
	if _, err := svc.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := svc.Embed(context.Background(), "x"); !errors.Is(err, errs.ErrModelUnavailable) {
		t.Errorf("Embed after Close = %v, want ErrModelUnavailable", err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateUninitialized: "uninitialized",
		StateInitializing:  "initializing",
		StateReady:         "ready",
		StateFailed:        "failed",
		State(42):          "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
