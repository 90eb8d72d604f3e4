package llm

import (
	"fmt"
	"strings"

	"lifesync-engine/internal/domain"
)

// NormalizeExplanation colapsa las dos formas de respuesta del modelo
// (nueva: persona_title/vibe_summary/... y legada: summary/strengths/
// challenges) en el DTO superset. Los alias retrocompatibles se calculan,
// nunca se adivinan.
func NormalizeExplanation(parsed map[string]any, modelName string, generationMS int64) domain.Explanation {
	exp := domain.Explanation{
		ModelName:        modelName,
		GenerationTimeMS: generationMS,
	}

	if reason, ok := parsed["error"].(string); ok && reason != "" {
		raw, _ := parsed["raw"].(string)
		exp.Error = reason
		exp.RawResponse = raw
		exp.ConfidenceNote = "Response parsing failed."
		exp.Summary = "Unable to parse LLM response. Please try again."
		exp.Strengths = []string{}
		exp.GrowthEdges = []string{}
		exp.Challenges = []string{}
		exp.Steps = []string{}
		return exp
	}

	exp.PersonaTitle = str(parsed["persona_title"])
	exp.VibeSummary = str(parsed["vibe_summary"])
	exp.Strengths = strList(parsed["strengths"])
	exp.GrowthEdges = strList(parsed["growth_edges"])
	exp.HowYouShowUp = str(parsed["how_you_show_up"])
	exp.Tagline = str(parsed["tagline"])

	// Forma legada: solo si la nueva no está presente.
	if exp.PersonaTitle == "" && exp.VibeSummary == "" {
		if summary := str(parsed["summary"]); summary != "" {
			exp.VibeSummary = summary
		}
		if len(exp.GrowthEdges) == 0 {
			exp.GrowthEdges = strList(parsed["challenges"])
		}
	}

	exp.Summary = exp.VibeSummary
	if exp.HowYouShowUp != "" {
		if exp.Summary != "" {
			exp.Summary += "\n\n"
		}
		exp.Summary += exp.HowYouShowUp
	}
	exp.Challenges = exp.GrowthEdges

	steps := make([]string, 0, len(exp.Strengths)+len(exp.GrowthEdges))
	for _, s := range exp.Strengths {
		steps = append(steps, fmt.Sprintf("Strength: %s", s))
	}
	for _, g := range exp.GrowthEdges {
		steps = append(steps, fmt.Sprintf("Growth Edge: %s", g))
	}
	exp.Steps = steps

	return exp
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func strList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := str(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
