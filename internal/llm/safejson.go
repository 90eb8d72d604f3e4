package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// SafeLoadJSON parsea texto que debería contener JSON pero puede venir sucio
// de un LLM. Etapas: parseo directo → extracción del primer objeto balanceado
// → reparación → extracción+reparación. Nunca lanza: si todo falla devuelve
// un mapa de error con los primeros 500 caracteres del texto crudo.
func SafeLoadJSON(text string) map[string]any {
	cleaned := CleanLLMJSONResponse(text)
	if cleaned == "" {
		return errObject("empty response", text)
	}

	if out, ok := tryParse(cleaned); ok {
		return out
	}

	extracted := extractFirstJSONObject(cleaned)
	if extracted != "" {
		if out, ok := tryParse(extracted); ok {
			return out
		}
	}

	if repaired, err := jsonrepair.JSONRepair(cleaned); err == nil {
		if out, ok := tryParse(repaired); ok {
			return out
		}
	}

	if extracted != "" {
		if repaired, err := jsonrepair.JSONRepair(extracted); err == nil {
			if out, ok := tryParse(repaired); ok {
				return out
			}
		}
	}

	return errObject("failed to parse JSON after all repair attempts", text)
}

func tryParse(candidate string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, false
	}
	return out, true
}

func errObject(reason, raw string) map[string]any {
	const max = 500
	if len(raw) > max {
		raw = raw[:max]
	}
	return map[string]any{"error": reason, "raw": raw}
}

// CleanLLMJSONResponse quita fences ```json ... ``` y BOM, dejando el contenido usable.
func CleanLLMJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.TrimPrefix(s, "\uFEFF")

	reStart := regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	reEnd := regexp.MustCompile("(?is)\\s*```\\s*$")
	s = reStart.ReplaceAllString(s, "")
	s = reEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractFirstJSONObject devuelve el primer objeto {...} balanceado,
// respetando strings y escapes.
func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}

	return ""
}
