package persona

import (
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestLoad_CatalogComplete(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(r.byMBTI) != 16 {
		t.Fatalf("catalog has %d personas, want 16", len(r.byMBTI))
	}
	if r.unknown.ID != "unknown" {
		t.Fatalf("missing unknown fallback")
	}
}

func TestMap_HighVector(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ocean := map[string]*float64{
		"O": fptr(0.9), "C": fptr(0.8), "E": fptr(0.8), "A": fptr(0.7), "N": fptr(0.3),
	}
	p, conf := r.Map(ocean)
	if p.MBTI != "ENFJ" {
		t.Fatalf("mapped to %s, want ENFJ", p.MBTI)
	}
	if conf <= 0 || conf > 1 {
		t.Fatalf("confidence out of range: %v", conf)
	}
}

func TestMap_AcceptsHundredScale(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	unit := map[string]*float64{
		"O": fptr(0.2), "C": fptr(0.8), "E": fptr(0.2), "A": fptr(0.2), "N": fptr(0.5),
	}
	hundred := map[string]*float64{
		"O": fptr(20), "C": fptr(80), "E": fptr(20), "A": fptr(20), "N": fptr(50),
	}

	p1, c1 := r.Map(unit)
	p2, c2 := r.Map(hundred)
	if p1.ID != p2.ID {
		t.Fatalf("scales disagree: %s vs %s", p1.ID, p2.ID)
	}
	if c1 != c2 {
		t.Fatalf("confidence differs across scales: %v vs %v", c1, c2)
	}
	if p1.MBTI != "ISTJ" {
		t.Fatalf("mapped to %s, want ISTJ", p1.MBTI)
	}
}

func TestMap_AbsentVectorFallsBack(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p, conf := r.Map(map[string]*float64{"O": fptr(0.5), "C": nil, "E": fptr(0.5), "A": fptr(0.5), "N": fptr(0.5)})
	if p.ID != "unknown" {
		t.Fatalf("expected unknown persona, got %s", p.ID)
	}
	if conf != 0 {
		t.Fatalf("expected zero confidence, got %v", conf)
	}
}

func TestGet_UnknownCode(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p := r.Get("XXXX"); p.ID != "unknown" {
		t.Fatalf("expected unknown fallback, got %s", p.ID)
	}
	if p := r.Get("infj"); p.MBTI != "INFJ" {
		t.Fatalf("lookup should be case-insensitive, got %s", p.MBTI)
	}
}
