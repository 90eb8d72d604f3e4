package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/llm"
	"lifesync-engine/internal/persona"
	"lifesync-engine/internal/questionbank"
	"lifesync-engine/internal/quota"
	"lifesync-engine/internal/repository"
	"lifesync-engine/internal/scorer"
)

// ErrQuotaExceeded distingue el agotamiento de cupo de LLM.
var ErrQuotaExceeded = errors.New("llm quota exceeded")

// ErrUnbalancedResponses marca un set que no cubre los cinco rasgos.
type ErrUnbalancedResponses struct {
	Report domain.ValidationReport
}

func (e *ErrUnbalancedResponses) Error() string { return "unbalanced responses: validation failed" }

// AssessmentService orquesta puntuación, persistencia y explicaciones.
type AssessmentService struct {
	logger      *zap.Logger
	bank        *questionbank.Bank
	scorer      *scorer.Scorer
	personas    *persona.Registry
	assessments repository.AssessmentRepository
	profiles    repository.ProfileRepository
	router      *llm.Router
	quota       quota.Limiter
	caches      *db.CacheSet
}

func NewAssessmentService(
	logger *zap.Logger,
	bank *questionbank.Bank,
	sc *scorer.Scorer,
	personas *persona.Registry,
	assessments repository.AssessmentRepository,
	profiles repository.ProfileRepository,
	router *llm.Router,
	quotaTracker quota.Limiter,
	caches *db.CacheSet,
) *AssessmentService {
	return &AssessmentService{
		logger:      logger,
		bank:        bank,
		scorer:      sc,
		personas:    personas,
		assessments: assessments,
		profiles:    profiles,
		router:      router,
		quota:       quotaTracker,
		caches:      caches,
	}
}

// ScoreAndPersist valida el balance del set, puntúa y persiste. La
// persistencia precede siempre a la respuesta 2xx: un cliente que recibe
// éxito puede leer el assessment de vuelta.
func (s *AssessmentService) ScoreAndPersist(ctx context.Context, responses domain.ResponseSet, userID *string, quizType string) (string, domain.ScoringResult, error) {
	report := s.scorer.ValidateResponses(responses)
	if !report.IsValid {
		return "", domain.ScoringResult{}, &ErrUnbalancedResponses{Report: report}
	}

	result := s.scorer.Score(responses)
	result.Metadata.Timestamp = float64(time.Now().UTC().UnixMilli()) / 1000.0
	if quizType != "" {
		result.Metadata.QuizType = quizType
	}

	id, err := s.assessments.CreateAssessment(ctx, result.Metadata.QuizType, userID)
	if err != nil {
		return "", domain.ScoringResult{}, err
	}
	if err := s.assessments.SaveResponses(ctx, id, responses); err != nil {
		return "", domain.ScoringResult{}, err
	}
	if err := s.assessments.SaveScores(ctx, id, result, responses); err != nil {
		return "", domain.ScoringResult{}, err
	}

	if userID != nil && *userID != "" {
		if err := s.profiles.UpsertProfile(ctx, *userID, id); err != nil {
			s.logger.Warn("profile upsert failed", zap.String("user_id", *userID), zap.Error(err))
		}
	}

	return id, result, nil
}

// Rescore vuelve a puntuar un ítem offline para el endpoint de sync batch.
func (s *AssessmentService) Rescore(ctx context.Context, responses domain.ResponseSet, userID *string, quizType string) (string, error) {
	id, _, err := s.ScoreAndPersist(ctx, responses, userID, quizType)
	return id, err
}

// GetSummary lee la proyección canónica, detectando assessments históricos
// que requieren retake (set desbalanceado almacenado por versiones previas).
// El flag es inmutable una vez presente.
func (s *AssessmentService) GetSummary(ctx context.Context, assessmentID string) (domain.AssessmentSummary, error) {
	summary, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentSummary{}, err
	}
	if !summary.NeedsRetake && s.looksIncomplete(summary) && summary.ScoringVersion != "" && summary.ScoringVersion != scorer.ScoringVersion {
		summary.NeedsRetake = true
	}
	return summary, nil
}

func (s *AssessmentService) looksIncomplete(summary domain.AssessmentSummary) bool {
	present := 0
	for _, code := range domain.TraitCodes {
		if v, ok := summary.TraitScores[code]; ok && v != nil {
			present++
		}
	}
	return present < len(domain.TraitCodes)
}

// GenerateExplanation compone cuota → fetch completo → router con breaker →
// persistencia → registro de cupo. El router nunca devuelve error; la cuota
// solo se consume cuando la generación no fue fallback.
func (s *AssessmentService) GenerateExplanation(ctx context.Context, assessmentID, identity, preferredProvider string) (domain.Explanation, error) {
	allowed, reason := s.quota.Check(identity)
	if !allowed {
		return domain.Explanation{}, errors.Join(ErrQuotaExceeded, errors.New(reason))
	}

	assessment, err := s.assessments.GetAssessmentFull(ctx, assessmentID)
	if err != nil {
		return domain.Explanation{}, err
	}

	req := s.buildRequest(assessment)
	exp := s.router.GenerateExplanation(ctx, preferredProvider, req)

	if err := s.assessments.SaveExplanation(ctx, assessmentID, exp); err != nil {
		s.logger.Warn("save explanation failed", zap.String("assessment_id", assessmentID), zap.Error(err))
	}
	if !exp.IsFallback {
		s.quota.Record(identity)
	}
	return exp, nil
}

// GetExplanation devuelve la explicación ya almacenada.
func (s *AssessmentService) GetExplanation(ctx context.Context, assessmentID string) (domain.Explanation, error) {
	return s.assessments.GetExplanation(ctx, assessmentID)
}

func (s *AssessmentService) buildRequest(a domain.Assessment) llm.ExplanationRequest {
	normalized := persona.Normalize(a.TraitScores)

	traits := make(map[string]float64, len(domain.TraitCodes))
	for _, code := range domain.TraitCodes {
		name := domain.TraitNames[code]
		if v := lookupTrait(normalized, code, name); v != nil {
			traits[name] = *v
		}
	}

	facets := make(map[string]float64, len(a.FacetScores))
	for name, v := range a.FacetScores {
		if v != nil {
			facets[name] = *v
		}
	}

	mbti := "UNKN"
	if a.MBTICode != nil {
		mbti = *a.MBTICode
	}
	personalityCode := mbti + "-X"
	if a.Metadata.ScoringVersion != "" {
		if pc := personaCodeFromMetadata(a); pc != "" {
			personalityCode = pc
		}
	}

	p := s.personaFor(mbti)

	return llm.ExplanationRequest{
		Traits:     traits,
		Facets:     facets,
		Confidence: map[string]float64{"global": a.Confidence},
		Dominant: llm.Dominant{
			MBTIProxy:       mbti,
			PersonalityCode: personalityCode,
		},
		ToneProfile: llm.BuildToneProfile(traits),
		Persona:     &p,
	}
}

// personaFor resuelve la persona del catálogo con lectura cache-through.
func (s *AssessmentService) personaFor(mbti string) domain.Persona {
	key := db.Key("get_persona", mbti)
	if s.caches != nil {
		if cached, ok := s.caches.Personas.Get(key); ok {
			if p, ok := cached.(domain.Persona); ok {
				return p
			}
		}
	}
	p := s.personas.Get(mbti)
	if s.caches != nil {
		s.caches.Personas.Add(key, p)
	}
	return p
}

// lookupTrait acepta las dos formas históricas de clave (corta y larga).
func lookupTrait(scores map[string]*float64, short, long string) *float64 {
	if v, ok := scores[short]; ok && v != nil {
		return v
	}
	if v, ok := scores[long]; ok && v != nil {
		return v
	}
	return nil
}

func personaCodeFromMetadata(a domain.Assessment) string {
	// El personality_code no se persiste como columna; se reconstruye del
	// vector cuando el nivel de neuroticismo está disponible.
	n := lookupTrait(persona.Normalize(a.TraitScores), "N", "Neuroticism")
	if n == nil || a.MBTICode == nil {
		return ""
	}
	switch {
	case *n < 0.35:
		return *a.MBTICode + "-S" // Stable
	case *n < 0.65:
		return *a.MBTICode + "-B" // Balanced
	default:
		return *a.MBTICode + "-S" // Sensitive
	}
}

// History delega al repositorio; el clamping de página vive allí.
func (s *AssessmentService) History(ctx context.Context, userID string, page, pageSize int) (domain.HistoryPage, error) {
	return s.assessments.GetHistory(ctx, userID, page, pageSize)
}

// Similar devuelve los assessments más cercanos por distancia OCEAN.
func (s *AssessmentService) Similar(ctx context.Context, assessmentID string, limit int) ([]domain.HistoryEntry, error) {
	return s.assessments.FindSimilar(ctx, assessmentID, limit)
}

// Profile resuelve el perfil vigente del usuario.
func (s *AssessmentService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// IsNotFound ayuda a los handlers a mapear 404 sin conocer la capa db.
func IsNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
