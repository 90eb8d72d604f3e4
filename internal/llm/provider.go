package llm

import (
	"context"
	"fmt"

	"lifesync-engine/internal/domain"
)

// ExplanationRequest agrupa la entrada del prompt de explicación.
type ExplanationRequest struct {
	Traits       map[string]float64 // nombres largos, escala 0-1
	Facets       map[string]float64
	Confidence   map[string]float64
	Dominant     Dominant
	SystemPrompt string
	ToneProfile  *domain.ToneProfile
	Persona      *domain.Persona
}

// Dominant resume el perfil derivado que ancla el prompt.
type Dominant struct {
	MBTIProxy       string `json:"mbti_proxy"`
	PersonalityCode string `json:"personality_code"`
}

// Provider es el contrato uniforme sobre los proveedores de LLM.
type Provider interface {
	Name() string
	GenerateExplanation(ctx context.Context, req ExplanationRequest) (domain.Explanation, error)
}

// ProviderFailure indica que un proveedor agotó todos sus modelos e intentos.
type ProviderFailure struct {
	Provider string
	Model    string
	Attempts int
	Err      error
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("provider %s (model %s) failed after %d attempts: %v",
		e.Provider, e.Model, e.Attempts, e.Err)
}

func (e *ProviderFailure) Unwrap() error { return e.Err }
