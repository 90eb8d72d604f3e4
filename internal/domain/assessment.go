package domain

import "time"

// Assessment es el registro persistido de un cuestionario puntuado.
// Inmutable tras el scoring salvo la Explanation y el flag needs_retake.
type Assessment struct {
	ID                string              `json:"id"`
	UserID            *string             `json:"user_id,omitempty"`
	QuizType          string              `json:"quiz_type"`
	CreatedAt         time.Time           `json:"created_at"`
	RawResponses      ResponseSet         `json:"raw_responses,omitempty"`
	TraitScores       map[string]*float64 `json:"trait_scores"`
	FacetScores       map[string]*float64 `json:"facet_scores"`
	MBTICode          *string             `json:"mbti_code"`
	PersonaID         string              `json:"persona_id"`
	Confidence        float64             `json:"confidence"`
	ScoringVersion    string              `json:"scoring_version"`
	Metadata          ScoringMetadata     `json:"metadata"`
	NeedsRetake       bool                `json:"needs_retake"`
	NeedsRetakeReason *string             `json:"needs_retake_reason,omitempty"`
}

// AssessmentSummary es la proyección que sirve el GET canónico.
type AssessmentSummary struct {
	ID             string              `json:"id"`
	CreatedAt      time.Time           `json:"created_at"`
	QuizType       string              `json:"quiz_type"`
	TraitScores    map[string]*float64 `json:"trait_scores"`
	FacetScores    map[string]*float64 `json:"facet_scores"`
	MBTICode       *string             `json:"mbti_code"`
	PersonaID      string              `json:"persona_id"`
	Confidence     float64             `json:"confidence"`
	ScoringVersion string              `json:"scoring_version"`
	Metadata       ScoringMetadata     `json:"metadata"`
	NeedsRetake    bool                `json:"needs_retake"`
}

// HistoryEntry es la fila mínima del historial paginado.
type HistoryEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	QuizType   string    `json:"quiz_type"`
	MBTICode   *string   `json:"mbti_code"`
	PersonaID  string    `json:"persona_id"`
	Confidence float64   `json:"confidence"`
}

// HistoryPage agrupa una página de historial con el total sin paginar.
type HistoryPage struct {
	Entries  []HistoryEntry `json:"entries"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}

// Profile apunta al assessment vigente de un usuario.
type Profile struct {
	UserID              string    `json:"user_id"`
	CurrentAssessmentID string    `json:"current_assessment_id"`
	UpdatedAt           time.Time `json:"updated_at"`
}
