package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/metrics"
	"lifesync-engine/internal/persona"
	"lifesync-engine/internal/service"
	"lifesync-engine/internal/validate"
)

// AssessmentHandler compone los endpoints de assessments. Solo composición:
// la lógica vive en el servicio.
type AssessmentHandler struct {
	logger  *zap.Logger
	svc     *service.AssessmentService
	metrics *metrics.Registry
}

func NewAssessmentHandler(logger *zap.Logger, svc *service.AssessmentService, m *metrics.Registry) *AssessmentHandler {
	return &AssessmentHandler{logger: logger, svc: svc, metrics: m}
}

type submitRequest struct {
	UserID    *string        `json:"user_id"`
	QuizType  string         `json:"quiz_type"`
	Platform  string         `json:"platform"`
	Responses map[string]int `json:"responses" binding:"required"`
}

// Create maneja POST /v1/assessments: validar → puntuar → persistir → responder.
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.UserID != nil && *req.UserID != "" {
		if err := validate.UUID("user_id", *req.UserID); err != nil {
			badRequestDetail(c, err)
			return
		}
	}
	if err := validate.QuizType(req.QuizType); err != nil {
		badRequestDetail(c, err)
		return
	}

	id, result, err := h.svc.ScoreAndPersist(c.Request.Context(), req.Responses, req.UserID, req.QuizType)
	if err != nil {
		var unbalanced *service.ErrUnbalancedResponses
		if errors.As(err, &unbalanced) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "unbalanced responses: validation failed",
				"detail":     unbalanced.Report,
				"request_id": RequestIDFrom(c),
			})
			return
		}
		h.fail(c, "score assessment", err)
		return
	}

	c.JSON(http.StatusOK, canonicalFromResult(id, result))
}

// Get maneja GET /v1/assessments/:id con lectura cache-through.
func (h *AssessmentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if err := validate.UUID("assessment_id", id); err != nil {
		badRequestDetail(c, err)
		return
	}

	summary, err := h.svc.GetSummary(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get assessment", err)
		return
	}
	c.JSON(http.StatusOK, canonicalFromSummary(summary))
}

// GenerateExplanation maneja POST /v1/assessments/:id/generate_explanation.
// El limiter ya corrió como middleware; acá se chequea la cuota.
func (h *AssessmentHandler) GenerateExplanation(c *gin.Context) {
	id := c.Param("id")
	if err := validate.UUID("assessment_id", id); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Message,
			"field":      err.Field,
			"request_id": RequestIDFrom(c),
		})
		return
	}

	var body struct {
		Provider string `json:"provider"`
	}
	_ = c.ShouldBindJSON(&body)
	provider := validate.SanitizeText(body.Provider)

	identity := c.ClientIP()
	if claims := claimsFrom(c); claims != nil {
		identity = claims.UserID
	}

	start := time.Now()
	exp, err := h.svc.GenerateExplanation(c.Request.Context(), id, identity, provider)
	if err == nil {
		h.metrics.RecordLLMGeneration(time.Since(start))
	}
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      err.Error(),
				"request_id": RequestIDFrom(c),
			})
			return
		}
		h.fail(c, "generate explanation", err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// GetExplanation maneja GET /v1/assessments/:id/explanation.
func (h *AssessmentHandler) GetExplanation(c *gin.Context) {
	id := c.Param("id")
	if err := validate.UUID("assessment_id", id); err != nil {
		badRequestDetail(c, err)
		return
	}
	exp, err := h.svc.GetExplanation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get explanation", err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

type syncItem struct {
	UserID    *string        `json:"user_id"`
	QuizType  string         `json:"quiz_type"`
	Responses map[string]int `json:"responses"`
}

// Sync maneja POST /v1/assessments/sync: re-puntúa ítems offline en batch
// con estado por ítem.
func (h *AssessmentHandler) Sync(c *gin.Context) {
	var req struct {
		Items []syncItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	type itemStatus struct {
		Index        int    `json:"index"`
		Status       string `json:"status"`
		AssessmentID string `json:"assessment_id,omitempty"`
		Error        string `json:"error,omitempty"`
	}
	results := make([]itemStatus, 0, len(req.Items))
	for i, item := range req.Items {
		id, err := h.svc.Rescore(c.Request.Context(), item.Responses, item.UserID, item.QuizType)
		if err != nil {
			results = append(results, itemStatus{Index: i, Status: "error", Error: publicError(err)})
			continue
		}
		results = append(results, itemStatus{Index: i, Status: "ok", AssessmentID: id})
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "request_id": RequestIDFrom(c)})
}

// Similar maneja GET /v1/assessments/:id/similar: los assessments más
// cercanos por distancia del vector OCEAN.
func (h *AssessmentHandler) Similar(c *gin.Context) {
	id := c.Param("id")
	if err := validate.UUID("assessment_id", id); err != nil {
		badRequestDetail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.svc.Similar(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, "find similar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// History maneja GET /v1/assessments/:id/history donde :id es el user id.
func (h *AssessmentHandler) History(c *gin.Context) {
	userID := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	history, err := h.svc.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.fail(c, "get history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *AssessmentHandler) fail(c *gin.Context, op string, err error) {
	if service.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "not found",
			"request_id": RequestIDFrom(c),
		})
		return
	}
	h.logger.Error(op+" failed", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "internal error",
		"request_id": RequestIDFrom(c),
	})
}

func publicError(err error) string {
	var unbalanced *service.ErrUnbalancedResponses
	if errors.As(err, &unbalanced) {
		return unbalanced.Error()
	}
	if service.IsNotFound(err) {
		return "not found"
	}
	return "internal error"
}

// canonicalAssessment es el contrato de respuesta canónico. Las dimensiones
// ausentes serializan como null.
type canonicalAssessment struct {
	Ocean          map[string]*float64    `json:"ocean"`
	PersonaID      string                 `json:"persona_id"`
	MBTIProxy      *string                `json:"mbti_proxy"`
	Confidence     float64                `json:"confidence"`
	Metadata       domain.ScoringMetadata `json:"metadata"`
	AssessmentID   string                 `json:"assessment_id"`
	Traits         map[string]*float64    `json:"traits"`
	Facets         map[string]*float64    `json:"facets"`
	Dominant       dominantBlock          `json:"dominant"`
	IsComplete     bool                   `json:"is_complete"`
	NeedsRetake    bool                   `json:"needs_retake"`
	TraitsWithData []string               `json:"traits_with_data"`
}

type dominantBlock struct {
	MBTIProxy       *string `json:"mbti_proxy"`
	PersonalityCode *string `json:"personality_code"`
}

func canonicalFromResult(id string, r domain.ScoringResult) canonicalAssessment {
	return canonicalAssessment{
		Ocean:          r.Ocean,
		PersonaID:      r.PersonaID,
		MBTIProxy:      r.MBTIProxy,
		Confidence:     r.Confidence,
		Metadata:       r.Metadata,
		AssessmentID:   id,
		Traits:         r.Traits,
		Facets:         r.Facets,
		Dominant:       dominantBlock{MBTIProxy: r.MBTIProxy, PersonalityCode: r.PersonalityCode},
		IsComplete:     r.HasCompleteProfile,
		TraitsWithData: r.TraitsWithData,
	}
}

func canonicalFromSummary(s domain.AssessmentSummary) canonicalAssessment {
	// Colapso de formas históricas (claves cortas/largas, 0-100) a la
	// representación canónica 0-1 con claves cortas.
	normalized := persona.Normalize(s.TraitScores)
	ocean := make(map[string]*float64, len(domain.TraitCodes))
	traits := make(map[string]*float64, len(domain.TraitCodes))
	var withData []string
	complete := true
	for _, code := range domain.TraitCodes {
		v := normalized[code]
		if v == nil {
			if lv := normalized[domain.TraitNames[code]]; lv != nil {
				v = lv
			}
		}
		ocean[code] = v
		traits[domain.TraitNames[code]] = v
		if v != nil {
			withData = append(withData, code)
		} else {
			complete = false
		}
	}

	var personalityCode *string
	if complete && s.MBTICode != nil {
		n := *ocean["N"]
		level := "B"
		switch {
		case n < 0.35:
			level = "S"
		case n < 0.65:
			level = "B"
		default:
			level = "S"
		}
		pc := *s.MBTICode + "-" + level
		personalityCode = &pc
	}

	return canonicalAssessment{
		Ocean:          ocean,
		PersonaID:      s.PersonaID,
		MBTIProxy:      s.MBTICode,
		Confidence:     s.Confidence,
		Metadata:       s.Metadata,
		AssessmentID:   s.ID,
		Traits:         traits,
		Facets:         s.FacetScores,
		Dominant:       dominantBlock{MBTIProxy: s.MBTICode, PersonalityCode: personalityCode},
		IsComplete:     complete,
		NeedsRetake:    s.NeedsRetake,
		TraitsWithData: withData,
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      msg,
		"request_id": RequestIDFrom(c),
	})
}

func badRequestDetail(c *gin.Context, err *validate.FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      err.Message,
		"field":      err.Field,
		"request_id": RequestIDFrom(c),
	})
}
