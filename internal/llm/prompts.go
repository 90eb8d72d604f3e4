package llm

import (
	"fmt"
	"sort"
	"strings"

	"lifesync-engine/internal/domain"
)

// SystemPrompt fija la persona, el formato y la disciplina JSON-only.
const SystemPrompt = `You are generating a personality profile for a self-development app called LifeSync.

Do NOT use academic psychology jargon. Avoid technical MBTI terminology unless necessary.

Your goals:
- Make the user FEEL understood.
- Keep it short, warm, and emotionally resonant.
- Use modern, relatable language.
- Give clear strengths and gentle growth edges.
- Provide an identity they can *see themselves in*.

Tone guidelines:
- Warm, supportive, but confident — not overly soft.
- Professional but not clinical.
- Avoid long paragraphs. Keep it tight.
- Avoid repeating the trait names in a list format.
- Output clean strings only.

Return ONLY valid JSON with this EXACT structure:
{
  "persona_title": "The [Persona Name]",
  "vibe_summary": "One sentence that captures their essence",
  "strengths": ["Short strength 1", "Short strength 2", "Short strength 3"],
  "growth_edges": ["Gentle growth area 1", "Gentle growth area 2"],
  "how_you_show_up": "3-4 short sentences describing real-world behavior. Make it relatable and specific.",
  "tagline": "A short, memorable phrase that captures their essence"
}`

// BuildUserPrompt arma el prompt de usuario con rasgos, facetas top,
// persona derivada y el bloque de tono opcional.
func BuildUserPrompt(req ExplanationRequest) string {
	var sb strings.Builder

	if req.ToneProfile != nil {
		sb.WriteString("Use the following communication tone:\n")
		if len(req.ToneProfile.Style) > 0 {
			fmt.Fprintf(&sb, "- Style: %s\n", strings.Join(req.ToneProfile.Style, ", "))
		}
		if len(req.ToneProfile.Strengths) > 0 {
			fmt.Fprintf(&sb, "- Lean into: %s\n", strings.Join(req.ToneProfile.Strengths, ", "))
		}
		if len(req.ToneProfile.Cautions) > 0 {
			fmt.Fprintf(&sb, "- Handle gently: %s\n", strings.Join(req.ToneProfile.Cautions, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Personality trait scores (0-1 scale):\n")
	for _, name := range sortedKeys(req.Traits) {
		fmt.Fprintf(&sb, "- %s: %.2f\n", name, req.Traits[name])
	}

	if len(req.Facets) > 0 {
		sb.WriteString("\nMost pronounced facets:\n")
		for _, f := range topN(req.Facets, 5) {
			fmt.Fprintf(&sb, "- %s: %.2f\n", f, req.Facets[f])
		}
	}

	if req.Dominant.MBTIProxy != "" {
		fmt.Fprintf(&sb, "\nDerived profile: %s", req.Dominant.MBTIProxy)
		if req.Dominant.PersonalityCode != "" {
			fmt.Fprintf(&sb, " (%s)", req.Dominant.PersonalityCode)
		}
		sb.WriteString("\n")
	}
	if req.Persona != nil {
		fmt.Fprintf(&sb, "Persona archetype: %s — %s\n", req.Persona.Title, req.Persona.Tagline)
	}

	sb.WriteString("\nGenerate the personality profile now.")
	return sb.String()
}

// BuildToneProfile deriva descriptores de tono de los rasgos (nombres
// largos, 0-1) para guiar la voz del texto generado.
func BuildToneProfile(traits map[string]float64) *domain.ToneProfile {
	tone := &domain.ToneProfile{}

	if e, ok := traits["Extraversion"]; ok {
		if e >= 0.6 {
			tone.Style = append(tone.Style, "energetic", "direct")
		} else if e <= 0.4 {
			tone.Style = append(tone.Style, "calm", "reflective")
		}
	}
	if o, ok := traits["Openness"]; ok && o >= 0.6 {
		tone.Style = append(tone.Style, "imaginative")
		tone.Strengths = append(tone.Strengths, "curiosity and original thinking")
	}
	if c, ok := traits["Conscientiousness"]; ok && c >= 0.6 {
		tone.Strengths = append(tone.Strengths, "follow-through and reliability")
	}
	if a, ok := traits["Agreeableness"]; ok && a >= 0.6 {
		tone.Style = append(tone.Style, "warm")
	}
	if n, ok := traits["Neuroticism"]; ok && n >= 0.65 {
		tone.Cautions = append(tone.Cautions, "stress sensitivity; avoid alarmist framing")
	}

	if len(tone.Style) == 0 && len(tone.Strengths) == 0 && len(tone.Cautions) == 0 {
		return nil
	}
	return tone
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func topN(m map[string]float64, n int) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
