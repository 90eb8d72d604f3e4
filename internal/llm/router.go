package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lifesync-engine/internal/domain"
)

// Router selecciona un proveedor, lo envuelve con su breaker y garantiza que
// el handler siempre reciba un DTO: contenido completo o fallback estático.
type Router struct {
	logger    *zap.Logger
	order     []string
	providers map[string]Provider
	breakers  map[string]*CircuitBreaker
}

// NewRouter registra los proveedores en orden de preferencia.
func NewRouter(logger *zap.Logger, providers ...Provider) *Router {
	r := &Router{
		logger:    logger,
		providers: make(map[string]Provider, len(providers)),
		breakers:  make(map[string]*CircuitBreaker, len(providers)),
	}
	for _, p := range providers {
		r.order = append(r.order, p.Name())
		r.providers[p.Name()] = p
		r.breakers[p.Name()] = NewCircuitBreaker(p.Name())
	}
	return r
}

// Breaker expone el breaker de un proveedor (health y tests).
func (r *Router) Breaker(name string) *CircuitBreaker { return r.breakers[name] }

// Providers lista los proveedores registrados en orden.
func (r *Router) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// GenerateExplanation intenta el proveedor preferido y después el resto.
// Nunca devuelve error: si todos fallan o el breaker está abierto, devuelve
// el fallback estático marcado is_fallback.
func (r *Router) GenerateExplanation(ctx context.Context, preferred string, req ExplanationRequest) domain.Explanation {
	for _, name := range r.tryOrder(preferred) {
		provider := r.providers[name]
		breaker := r.breakers[name]

		if !breaker.AllowRequest() {
			r.logger.Warn("circuit open, skipping provider", zap.String("provider", name))
			continue
		}

		exp, err := provider.GenerateExplanation(ctx, req)
		if err == nil {
			breaker.RecordSuccess()
			return exp
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// El deadline de la request manda; el fallback sigue siendo
			// derivable de datos ya almacenados.
			r.logger.Warn("explanation generation cancelled", zap.String("provider", name), zap.Error(err))
			return r.Fallback(req)
		}

		breaker.RecordFailure()
		var pf *ProviderFailure
		if errors.As(err, &pf) {
			r.logger.Warn("provider exhausted, trying next", zap.String("provider", name), zap.Error(err))
			continue
		}
		r.logger.Error("provider error", zap.String("provider", name), zap.Error(err))
	}

	return r.Fallback(req)
}

func (r *Router) tryOrder(preferred string) []string {
	if preferred == "" {
		return r.order
	}
	if _, ok := r.providers[preferred]; !ok {
		return r.order
	}
	out := []string{preferred}
	for _, name := range r.order {
		if name != preferred {
			out = append(out, name)
		}
	}
	return out
}

// Fallback construye la explicación estática determinista a partir de los
// datos ya persistidos (persona del catálogo por mbti_code). Siempre se
// declara con is_fallback para que el replay sea estable.
func (r *Router) Fallback(req ExplanationRequest) domain.Explanation {
	title := "Your Personality Profile"
	tagline := "Still charting the map."
	descriptor := "A fuller written profile is temporarily unavailable."
	strengths := []string{}
	growth := []string{}

	if req.Persona != nil {
		title = req.Persona.Title
		tagline = req.Persona.Tagline
		descriptor = req.Persona.Descriptor
		strengths = append(strengths, req.Persona.Strengths...)
		growth = append(growth, req.Persona.GrowthEdges...)
	}

	vibe := descriptor
	if req.Dominant.MBTIProxy != "" {
		vibe = fmt.Sprintf("%s (%s)", descriptor, req.Dominant.MBTIProxy)
	}

	exp := domain.Explanation{
		PersonaTitle: title,
		VibeSummary:  vibe,
		Strengths:    strengths,
		GrowthEdges:  growth,
		HowYouShowUp: "",
		Tagline:      tagline,
		ModelName:    "fallback",
		IsFallback:   true,
		ConfidenceNote: "Generated from the stored persona catalog; the language model was unavailable.",
	}
	exp.Summary = exp.VibeSummary
	exp.Challenges = exp.GrowthEdges
	exp.Steps = []string{}
	for _, s := range strengths {
		exp.Steps = append(exp.Steps, fmt.Sprintf("Strength: %s", s))
	}
	for _, g := range growth {
		exp.Steps = append(exp.Steps, fmt.Sprintf("Growth Edge: %s", g))
	}
	return exp
}
