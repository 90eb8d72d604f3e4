package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
)

// AssessmentRepository expone las operaciones tipadas de persistencia de
// assessments. Ningún error de la librería cliente se devuelve sin envolver.
type AssessmentRepository interface {
	CreateAssessment(ctx context.Context, quizType string, userID *string) (string, error)
	SaveResponses(ctx context.Context, assessmentID string, responses domain.ResponseSet) error
	SaveScores(ctx context.Context, assessmentID string, result domain.ScoringResult, raw domain.ResponseSet) error
	SaveExplanation(ctx context.Context, assessmentID string, exp domain.Explanation) error
	GetAssessment(ctx context.Context, assessmentID string) (domain.AssessmentSummary, error)
	GetAssessmentFull(ctx context.Context, assessmentID string) (domain.Assessment, error)
	GetAssessmentScores(ctx context.Context, assessmentID string) (map[string]*float64, map[string]*float64, error)
	GetExplanation(ctx context.Context, assessmentID string) (domain.Explanation, error)
	GetHistory(ctx context.Context, userID string, page, pageSize int) (domain.HistoryPage, error)
	FindSimilar(ctx context.Context, assessmentID string, limit int) ([]domain.HistoryEntry, error)
}

// PgAssessmentRepository implementa AssessmentRepository sobre pgx, con
// retry+timeout transversales y lectura cache-through.
type PgAssessmentRepository struct {
	pool         *pgxpool.Pool
	caches       *db.CacheSet
	logger       *zap.Logger
	queryTimeout time.Duration
}

func NewPgAssessmentRepository(pool *pgxpool.Pool, caches *db.CacheSet, logger *zap.Logger, queryTimeout time.Duration) *PgAssessmentRepository {
	return &PgAssessmentRepository{
		pool:         pool,
		caches:       caches,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

func (r *PgAssessmentRepository) CreateAssessment(ctx context.Context, quizType string, userID *string) (string, error) {
	const query = `
		INSERT INTO personality_assessments (user_id, quiz_type, created_at)
		VALUES ($1, $2, now())
		RETURNING id
	`
	var id string
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, query, userID, quizType).Scan(&id)
	})
	if err != nil {
		return "", wrap("create assessment", err)
	}
	return id, nil
}

func (r *PgAssessmentRepository) SaveResponses(ctx context.Context, assessmentID string, responses domain.ResponseSet) error {
	rows := make([][]any, 0, len(responses))
	for qid, v := range responses {
		rows = append(rows, []any{assessmentID, qid, v})
	}
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		_, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{"assessment_responses"},
			[]string{"assessment_id", "question_id", "value"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return wrap("save responses", err)
	}
	return nil
}

func (r *PgAssessmentRepository) SaveScores(ctx context.Context, assessmentID string, result domain.ScoringResult, raw domain.ResponseSet) error {
	traitJSON, err := json.Marshal(result.Ocean)
	if err != nil {
		return fmt.Errorf("%w: marshal trait scores: %v", db.ErrInvalid, err)
	}
	facetJSON, err := json.Marshal(result.Facets)
	if err != nil {
		return fmt.Errorf("%w: marshal facet scores: %v", db.ErrInvalid, err)
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: marshal raw responses: %v", db.ErrInvalid, err)
	}
	metaJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", db.ErrInvalid, err)
	}

	const query = `
		UPDATE personality_assessments
		SET trait_scores = $2,
		    facet_scores = $3,
		    raw_responses = $4,
		    metadata = $5,
		    mbti_code = $6,
		    persona_id = $7,
		    confidence = $8,
		    scoring_version = $9,
		    trait_vector = $10
		WHERE id = $1
		RETURNING user_id
	`
	var userID *string
	err = db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx, query,
			assessmentID, traitJSON, facetJSON, rawJSON, metaJSON,
			result.MBTIProxy, result.PersonaID, result.Confidence,
			result.Metadata.ScoringVersion, traitVector(result.Ocean),
		).Scan(&userID)
		return err
	})
	if err != nil {
		return wrap("save scores", err)
	}

	r.caches.InvalidateAssessment(assessmentID)
	if userID != nil {
		r.caches.InvalidateHistory(*userID)
	}
	r.recordParityTelemetry(ctx, assessmentID, result)
	return nil
}

// recordParityTelemetry escribe la fila de telemetría best-effort: un fallo
// se registra y nunca afecta la operación principal.
func (r *PgAssessmentRepository) recordParityTelemetry(ctx context.Context, assessmentID string, result domain.ScoringResult) {
	const query = `
		INSERT INTO parity_telemetry (assessment_id, scoring_version, input_hash, output_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	telemetryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := r.pool.Exec(telemetryCtx, query,
		assessmentID, result.Metadata.ScoringVersion,
		result.Metadata.InputHash, result.Metadata.OutputHash,
	); err != nil {
		r.logger.Warn("parity telemetry insert failed",
			zap.String("assessment_id", assessmentID), zap.Error(err))
	}
}

func (r *PgAssessmentRepository) SaveExplanation(ctx context.Context, assessmentID string, exp domain.Explanation) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("%w: marshal explanation: %v", db.ErrInvalid, err)
	}
	const query = `
		INSERT INTO assessment_explanations (assessment_id, explanation_data, model_name, generation_time_ms, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (assessment_id) DO UPDATE
		SET explanation_data = EXCLUDED.explanation_data,
		    model_name = EXCLUDED.model_name,
		    generation_time_ms = EXCLUDED.generation_time_ms,
		    created_at = now()
	`
	err = db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, query, assessmentID, data, exp.ModelName, exp.GenerationTimeMS)
		return err
	})
	if err != nil {
		return wrap("save explanation", err)
	}
	r.caches.InvalidateAssessment(assessmentID)
	return nil
}

func (r *PgAssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.AssessmentSummary, error) {
	key := db.Key("get_assessment", assessmentID)
	if cached, ok := r.caches.Assessments.Get(key); ok {
		if summary, ok := cached.(domain.AssessmentSummary); ok {
			return summary, nil
		}
	}

	// Proyección mínima: solo las columnas que el contrato canónico sirve.
	const query = `
		SELECT id, created_at, quiz_type, trait_scores, facet_scores,
		       mbti_code, persona_id, confidence, scoring_version, metadata,
		       needs_retake
		FROM personality_assessments
		WHERE id = $1
	`
	var summary domain.AssessmentSummary
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		var traitJSON, facetJSON, metaJSON []byte
		err := r.pool.QueryRow(ctx, query, assessmentID).Scan(
			&summary.ID, &summary.CreatedAt, &summary.QuizType,
			&traitJSON, &facetJSON, &summary.MBTICode, &summary.PersonaID,
			&summary.Confidence, &summary.ScoringVersion, &metaJSON,
			&summary.NeedsRetake,
		)
		if err != nil {
			return err
		}
		summary.TraitScores = unmarshalScores(traitJSON)
		summary.FacetScores = unmarshalScores(facetJSON)
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &summary.Metadata)
		}
		return nil
	})
	if err != nil {
		return domain.AssessmentSummary{}, wrap("get assessment", err)
	}

	r.caches.Assessments.Add(key, summary)
	return summary, nil
}

func (r *PgAssessmentRepository) GetAssessmentFull(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	const query = `
		SELECT id, user_id, created_at, quiz_type, raw_responses, trait_scores,
		       facet_scores, mbti_code, persona_id, confidence, scoring_version,
		       metadata, needs_retake, needs_retake_reason
		FROM personality_assessments
		WHERE id = $1
	`
	var a domain.Assessment
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		var rawJSON, traitJSON, facetJSON, metaJSON []byte
		err := r.pool.QueryRow(ctx, query, assessmentID).Scan(
			&a.ID, &a.UserID, &a.CreatedAt, &a.QuizType, &rawJSON,
			&traitJSON, &facetJSON, &a.MBTICode, &a.PersonaID,
			&a.Confidence, &a.ScoringVersion, &metaJSON,
			&a.NeedsRetake, &a.NeedsRetakeReason,
		)
		if err != nil {
			return err
		}
		if len(rawJSON) > 0 {
			_ = json.Unmarshal(rawJSON, &a.RawResponses)
		}
		a.TraitScores = unmarshalScores(traitJSON)
		a.FacetScores = unmarshalScores(facetJSON)
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &a.Metadata)
		}
		return nil
	})
	if err != nil {
		return domain.Assessment{}, wrap("get assessment full", err)
	}
	return a, nil
}

func (r *PgAssessmentRepository) GetAssessmentScores(ctx context.Context, assessmentID string) (map[string]*float64, map[string]*float64, error) {
	const query = `
		SELECT trait_scores, facet_scores
		FROM personality_assessments
		WHERE id = $1
	`
	var traits, facets map[string]*float64
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		var traitJSON, facetJSON []byte
		if err := r.pool.QueryRow(ctx, query, assessmentID).Scan(&traitJSON, &facetJSON); err != nil {
			return err
		}
		traits = unmarshalScores(traitJSON)
		facets = unmarshalScores(facetJSON)
		return nil
	})
	if err != nil {
		return nil, nil, wrap("get assessment scores", err)
	}
	return traits, facets, nil
}

func (r *PgAssessmentRepository) GetExplanation(ctx context.Context, assessmentID string) (domain.Explanation, error) {
	const query = `
		SELECT explanation_data
		FROM assessment_explanations
		WHERE assessment_id = $1
	`
	var exp domain.Explanation
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		var data []byte
		if err := r.pool.QueryRow(ctx, query, assessmentID).Scan(&data); err != nil {
			return err
		}
		return json.Unmarshal(data, &exp)
	})
	if err != nil {
		return domain.Explanation{}, wrap("get explanation", err)
	}
	return exp, nil
}

func (r *PgAssessmentRepository) GetHistory(ctx context.Context, userID string, page, pageSize int) (domain.HistoryPage, error) {
	page, pageSize = clampPage(page, pageSize)

	key := db.Key("get_history", userID, page, pageSize)
	if cached, ok := r.caches.History.Get(key); ok {
		if hp, ok := cached.(domain.HistoryPage); ok {
			return hp, nil
		}
	}

	// Lista mínima de columnas: el ancho de banda importa en el historial.
	const query = `
		SELECT id, created_at, quiz_type, mbti_code, persona_id, confidence
		FROM personality_assessments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	const countQuery = `
		SELECT count(*) FROM personality_assessments WHERE user_id = $1
	`

	hp := domain.HistoryPage{Page: page, PageSize: pageSize}
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&hp.Total); err != nil {
			return err
		}
		rows, err := r.pool.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
		if err != nil {
			return err
		}
		defer rows.Close()

		hp.Entries = hp.Entries[:0]
		for rows.Next() {
			var e domain.HistoryEntry
			var personaID *string
			if err := rows.Scan(&e.ID, &e.CreatedAt, &e.QuizType, &e.MBTICode, &personaID, &e.Confidence); err != nil {
				return err
			}
			if personaID != nil {
				e.PersonaID = *personaID
			} else {
				e.PersonaID = "unknown"
			}
			hp.Entries = append(hp.Entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return domain.HistoryPage{}, wrap("get history", err)
	}
	if hp.Entries == nil {
		hp.Entries = []domain.HistoryEntry{}
	}

	r.caches.History.Add(key, hp)
	return hp, nil
}

// FindSimilar devuelve los assessments más cercanos por distancia del
// vector OCEAN. Alimenta el análisis offline; no forma parte del contrato
// canónico de la API.
func (r *PgAssessmentRepository) FindSimilar(ctx context.Context, assessmentID string, limit int) ([]domain.HistoryEntry, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	const query = `
		SELECT b.id, b.created_at, b.quiz_type, b.mbti_code, b.persona_id, b.confidence
		FROM personality_assessments a
		JOIN personality_assessments b
		  ON b.id <> a.id AND b.trait_vector IS NOT NULL
		WHERE a.id = $1 AND a.trait_vector IS NOT NULL
		ORDER BY b.trait_vector <-> a.trait_vector
		LIMIT $2
	`
	var entries []domain.HistoryEntry
	err := db.WithRetry(ctx, r.queryTimeout, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, assessmentID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		entries = entries[:0]
		for rows.Next() {
			var e domain.HistoryEntry
			var personaID *string
			if err := rows.Scan(&e.ID, &e.CreatedAt, &e.QuizType, &e.MBTICode, &personaID, &e.Confidence); err != nil {
				return err
			}
			if personaID != nil {
				e.PersonaID = *personaID
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("find similar", err)
	}
	return entries, nil
}

// clampPage acota la paginación a page >= 1 y page_size en [1,100].
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// traitVector arma la columna pgvector a partir del vector OCEAN completo.
// Con rasgos ausentes devuelve nil y la columna queda NULL.
func traitVector(ocean map[string]*float64) any {
	vals := make([]float32, 0, len(domain.TraitCodes))
	for _, code := range domain.TraitCodes {
		v := ocean[code]
		if v == nil {
			return nil
		}
		vals = append(vals, float32(*v))
	}
	return pgvector.NewVector(vals)
}

func unmarshalScores(raw []byte) map[string]*float64 {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]*float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", db.ErrNotFound, op)
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%w: %s", db.ErrNotFound, op)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %v", db.ErrUnavailable, op, err)
	case db.IsTransient(err):
		return fmt.Errorf("%w: %s: %v", db.ErrUnavailable, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", db.ErrInvalid, op, err)
	}
}
