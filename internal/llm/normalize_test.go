package llm

import (
	"strings"
	"testing"
)

func TestNormalizeExplanation_NewShape(t *testing.T) {
	parsed := map[string]any{
		"persona_title":   "The Spark",
		"vibe_summary":    "All in, heart first.",
		"strengths":       []any{"Inspires", "Connects"},
		"growth_edges":    []any{"Scattered focus"},
		"how_you_show_up": "You light up a room.",
		"tagline":         "Heart first.",
	}
	exp := NormalizeExplanation(parsed, "gemini-2.0-flash", 1200)

	if exp.PersonaTitle != "The Spark" {
		t.Fatalf("persona_title = %q", exp.PersonaTitle)
	}
	if exp.Summary != "All in, heart first.\n\nYou light up a room." {
		t.Fatalf("computed summary = %q", exp.Summary)
	}
	if len(exp.Challenges) != 1 || exp.Challenges[0] != "Scattered focus" {
		t.Fatalf("challenges alias = %v", exp.Challenges)
	}
	if len(exp.Steps) != 3 {
		t.Fatalf("steps = %v", exp.Steps)
	}
	if !strings.HasPrefix(exp.Steps[0], "Strength: ") || !strings.HasPrefix(exp.Steps[2], "Growth Edge: ") {
		t.Fatalf("steps format: %v", exp.Steps)
	}
	if exp.ModelName != "gemini-2.0-flash" || exp.GenerationTimeMS != 1200 {
		t.Fatalf("metadata lost: %s %d", exp.ModelName, exp.GenerationTimeMS)
	}
	if exp.IsFallback {
		t.Fatalf("normalized content must not be a fallback")
	}
}

func TestNormalizeExplanation_LegacyShape(t *testing.T) {
	parsed := map[string]any{
		"summary":    "A steady builder.",
		"strengths":  []any{"Methodical"},
		"challenges": []any{"Rigid under change"},
	}
	exp := NormalizeExplanation(parsed, "gpt-4o-mini", 900)

	if exp.VibeSummary != "A steady builder." {
		t.Fatalf("legacy summary should map to vibe_summary, got %q", exp.VibeSummary)
	}
	if len(exp.GrowthEdges) != 1 || exp.GrowthEdges[0] != "Rigid under change" {
		t.Fatalf("legacy challenges should map to growth_edges, got %v", exp.GrowthEdges)
	}
	if exp.Challenges[0] != exp.GrowthEdges[0] {
		t.Fatalf("alias mismatch")
	}
}

func TestNormalizeExplanation_ErrorObject(t *testing.T) {
	parsed := map[string]any{"error": "failed to parse JSON after all repair attempts", "raw": "nonsense"}
	exp := NormalizeExplanation(parsed, "gemini-2.0-flash", 100)

	if exp.Error == "" {
		t.Fatalf("error should surface in the DTO")
	}
	if exp.RawResponse != "nonsense" {
		t.Fatalf("raw response = %q", exp.RawResponse)
	}
	if exp.Summary == "" {
		t.Fatalf("error DTO still needs a usable summary")
	}
}

func TestBuildUserPrompt_IncludesToneAndDominant(t *testing.T) {
	req := ExplanationRequest{
		Traits: map[string]float64{"Openness": 0.8, "Extraversion": 0.7},
		Facets: map[string]float64{"Imagination": 0.9},
		Dominant: Dominant{
			MBTIProxy:       "ENFP",
			PersonalityCode: "ENFP-B",
		},
		ToneProfile: BuildToneProfile(map[string]float64{"Extraversion": 0.7, "Openness": 0.8}),
	}
	prompt := BuildUserPrompt(req)

	for _, want := range []string{"Openness: 0.80", "ENFP", "ENFP-B", "Imagination", "communication tone"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildToneProfile_LowSignalIsNil(t *testing.T) {
	if tone := BuildToneProfile(map[string]float64{"Openness": 0.5}); tone != nil {
		t.Fatalf("neutral traits should produce no tone profile, got %+v", tone)
	}
	tone := BuildToneProfile(map[string]float64{"Neuroticism": 0.8})
	if tone == nil || len(tone.Cautions) == 0 {
		t.Fatalf("high neuroticism should add a caution")
	}
}
