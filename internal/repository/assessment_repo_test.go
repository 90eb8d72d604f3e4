package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"lifesync-engine/internal/db"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{1, 20, 1, 20},
		{0, 20, 1, 20},
		{-3, 20, 1, 20},
		{2, 0, 2, 1},
		{2, 101, 2, 100},
		{2, 1000, 2, 100},
		{2, 100, 2, 100},
	}
	for _, tc := range cases {
		gotPage, gotSize := clampPage(tc.page, tc.size)
		if gotPage != tc.wantPage || gotSize != tc.wantSize {
			t.Fatalf("clampPage(%d,%d) = (%d,%d), want (%d,%d)",
				tc.page, tc.size, gotPage, gotSize, tc.wantPage, tc.wantSize)
		}
	}
}

func TestTraitVector(t *testing.T) {
	full := map[string]*float64{}
	for i, code := range []string{"O", "C", "E", "A", "N"} {
		v := float64(i) / 10
		full[code] = &v
	}
	got := traitVector(full)
	vec, ok := got.(pgvector.Vector)
	if !ok {
		t.Fatalf("expected pgvector.Vector, got %T", got)
	}
	if len(vec.Slice()) != 5 {
		t.Fatalf("vector length = %d", len(vec.Slice()))
	}

	full["N"] = nil
	if got := traitVector(full); got != nil {
		t.Fatalf("incomplete vector must map to NULL, got %v", got)
	}
}

func TestWrap_TypedErrors(t *testing.T) {
	if !errors.Is(wrap("op", pgx.ErrNoRows), db.ErrNotFound) {
		t.Fatalf("no rows should wrap to ErrNotFound")
	}
	if !errors.Is(wrap("op", errors.New("connection refused")), db.ErrUnavailable) {
		t.Fatalf("transient should wrap to ErrUnavailable")
	}
	if !errors.Is(wrap("op", errors.New("violates unique constraint")), db.ErrInvalid) {
		t.Fatalf("permanent should wrap to ErrInvalid")
	}
}

func TestUnmarshalScores_NullSafety(t *testing.T) {
	scores := unmarshalScores([]byte(`{"O":0.5,"C":null}`))
	if scores["O"] == nil || *scores["O"] != 0.5 {
		t.Fatalf("O = %v", scores["O"])
	}
	if v, ok := scores["C"]; !ok || v != nil {
		t.Fatalf("C should be present and nil")
	}
	if unmarshalScores(nil) != nil {
		t.Fatalf("empty input should return nil map")
	}
	if unmarshalScores([]byte("garbage")) != nil {
		t.Fatalf("bad JSON should return nil map")
	}
}
