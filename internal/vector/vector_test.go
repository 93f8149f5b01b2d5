package vector

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/hyperjump/roomfinder/internal/errs"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInnerProductAndNorm(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("InnerProduct = %v, want 11", got)
	}
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm = %v, want 5", got)
	}
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	candidates := []Candidate{
		{ID: "c", Vector: []float32{0, 1, 0}},
		{ID: "b", Vector: []float32{1, 0, 0}},
		{ID: "a", Vector: []float32{2, 0, 0}}, // same direction as b: tied score
		{ID: "d", Vector: []float32{0.9, 0.1, 0}},
	}
	results, err := Rank([]float32{1, 0, 0}, candidates, RankOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "d", "c"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("rank %d: got %s, want %s", i, results[i].ID, id)
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	candidates := []Candidate{
		{ID: "x", Vector: []float32{0.3, 0.7}},
		{ID: "y", Vector: []float32{0.7, 0.3}},
		{ID: "z", Vector: []float32{0.5, 0.5}},
	}
	first, _ := Rank([]float32{0.6, 0.4}, candidates, RankOptions{})
	for i := 0; i < 10; i++ {
		again, _ := Rank([]float32{0.6, 0.4}, candidates, RankOptions{})
		for j := range first {
			if first[j].ID != again[j].ID || first[j].Score != again[j].Score {
				t.Fatalf("run %d differs at %d", i, j)
			}
		}
	}
}

func TestRank_MinScoreAndLimit(t *testing.T) {
	candidates := []Candidate{
		{ID: "near", Vector: []float32{1, 0}},
		{ID: "mid", Vector: []float32{1, 1}},
		{ID: "far", Vector: []float32{-1, 0}},
	}
	floor := 0.0
	results, err := Rank([]float32{1, 0}, candidates, RankOptions{MinScore: &floor})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected far to be filtered, got %d results", len(results))
	}
	results, _ = Rank([]float32{1, 0}, candidates, RankOptions{Limit: 1})
	if len(results) != 1 || results[0].ID != "near" {
		t.Errorf("limit 1: got %+v", results)
	}
	none := 0.99
	results, err = Rank([]float32{0, 1}, candidates[:1], RankOptions{MinScore: &none})
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty result without error, got %v, %v", results, err)
	}
}

func TestRank_DimensionMismatch(t *testing.T) {
	_, err := Rank([]float32{1, 0}, []Candidate{{ID: "a", Vector: []float32{1, 0, 0}}}, RankOptions{})
	if !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3e-7, 0}
	out, err := DecodeFloat32s(EncodeFloat32s(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
	if v, err := DecodeFloat32s(nil); err != nil || v != nil {
		t.Errorf("empty blob: got %v, %v", v, err)
	}
	if _, err := DecodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestRank_ToleranceChain(t *testing.T) {
	// m is within tolerance of both z and a, but a is not within tolerance of z.
	z := VectorResult{ID: "z", Score: 1}
	m := VectorResult{ID: "m", Score: 1 - 0.6e-9}
	a := VectorResult{ID: "a", Score: 1 - 1.2e-9}
	orders := [][]VectorResult{
		{a, m, z}, {a, z, m}, {m, a, z}, {m, z, a}, {z, a, m}, {z, m, a},
	}
	for _, order := range orders {
		results := make([]*VectorResult, len(order))
		for i := range order {
			r := order[i]
			results[i] = &r
		}
		sortResults(results, DefaultTieTolerance)
		got := []string{results[0].ID, results[1].ID, results[2].ID}
		if want := []string{"m", "z", "a"}; !reflect.DeepEqual(got, want) {
			t.Errorf("input %s%s%s: got %v, want %v", order[0].ID, order[1].ID, order[2].ID, got, want)
		}
	}
}
