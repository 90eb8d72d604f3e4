package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifesync-engine/internal/config"
	"lifesync-engine/internal/db"
	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/llm"
	"lifesync-engine/internal/metrics"
	"lifesync-engine/internal/persona"
	"lifesync-engine/internal/questionbank"
	"lifesync-engine/internal/quota"
	"lifesync-engine/internal/ratelimit"
	"lifesync-engine/internal/scorer"
	"lifesync-engine/internal/service"

	"github.com/gin-gonic/gin"
)

// memAssessmentRepo implementa AssessmentRepository en memoria con la misma
// disciplina de caché que la implementación Pg, para probar los handlers sin
// base de datos.
type memAssessmentRepo struct {
	mu           sync.Mutex
	caches       *db.CacheSet
	assessments  map[string]domain.Assessment
	explanations map[string]domain.Explanation
}

func newMemAssessmentRepo(caches *db.CacheSet) *memAssessmentRepo {
	return &memAssessmentRepo{
		caches:       caches,
		assessments:  make(map[string]domain.Assessment),
		explanations: make(map[string]domain.Explanation),
	}
}

func (r *memAssessmentRepo) CreateAssessment(ctx context.Context, quizType string, userID *string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.assessments[id] = domain.Assessment{
		ID:        id,
		UserID:    userID,
		QuizType:  quizType,
		CreatedAt: time.Now().UTC(),
		PersonaID: "unknown",
	}
	return id, nil
}

func (r *memAssessmentRepo) SaveResponses(ctx context.Context, id string, responses domain.ResponseSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return db.ErrNotFound
	}
	a.RawResponses = responses
	r.assessments[id] = a
	return nil
}

func (r *memAssessmentRepo) SaveScores(ctx context.Context, id string, result domain.ScoringResult, raw domain.ResponseSet) error {
	r.mu.Lock()
	a, ok := r.assessments[id]
	if !ok {
		r.mu.Unlock()
		return db.ErrNotFound
	}
	a.TraitScores = result.Ocean
	a.FacetScores = result.Facets
	a.MBTICode = result.MBTIProxy
	a.PersonaID = result.PersonaID
	a.Confidence = result.Confidence
	a.ScoringVersion = result.Metadata.ScoringVersion
	a.Metadata = result.Metadata
	a.RawResponses = raw
	r.assessments[id] = a
	r.mu.Unlock()

	r.caches.InvalidateAssessment(id)
	if a.UserID != nil {
		r.caches.InvalidateHistory(*a.UserID)
	}
	return nil
}

func (r *memAssessmentRepo) SaveExplanation(ctx context.Context, id string, exp domain.Explanation) error {
	r.mu.Lock()
	r.explanations[id] = exp
	r.mu.Unlock()
	r.caches.InvalidateAssessment(id)
	return nil
}

func (r *memAssessmentRepo) GetAssessment(ctx context.Context, id string) (domain.AssessmentSummary, error) {
	key := db.Key("get_assessment", id)
	if cached, ok := r.caches.Assessments.Get(key); ok {
		if summary, ok := cached.(domain.AssessmentSummary); ok {
			return summary, nil
		}
	}

	r.mu.Lock()
	a, ok := r.assessments[id]
	r.mu.Unlock()
	if !ok {
		return domain.AssessmentSummary{}, db.ErrNotFound
	}
	summary := domain.AssessmentSummary{
		ID:             a.ID,
		CreatedAt:      a.CreatedAt,
		QuizType:       a.QuizType,
		TraitScores:    a.TraitScores,
		FacetScores:    a.FacetScores,
		MBTICode:       a.MBTICode,
		PersonaID:      a.PersonaID,
		Confidence:     a.Confidence,
		ScoringVersion: a.ScoringVersion,
		Metadata:       a.Metadata,
		NeedsRetake:    a.NeedsRetake,
	}
	r.caches.Assessments.Add(key, summary)
	return summary, nil
}

func (r *memAssessmentRepo) GetAssessmentFull(ctx context.Context, id string) (domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return domain.Assessment{}, db.ErrNotFound
	}
	return a, nil
}

func (r *memAssessmentRepo) GetAssessmentScores(ctx context.Context, id string) (map[string]*float64, map[string]*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, nil, db.ErrNotFound
	}
	return a.TraitScores, a.FacetScores, nil
}

func (r *memAssessmentRepo) GetExplanation(ctx context.Context, id string) (domain.Explanation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.explanations[id]
	if !ok {
		return domain.Explanation{}, db.ErrNotFound
	}
	return exp, nil
}

func (r *memAssessmentRepo) GetHistory(ctx context.Context, userID string, page, pageSize int) (domain.HistoryPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []domain.HistoryEntry
	for _, a := range r.assessments {
		if a.UserID != nil && *a.UserID == userID {
			entries = append(entries, domain.HistoryEntry{
				ID: a.ID, CreatedAt: a.CreatedAt, QuizType: a.QuizType,
				MBTICode: a.MBTICode, PersonaID: a.PersonaID, Confidence: a.Confidence,
			})
		}
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return domain.HistoryPage{Entries: entries, Page: page, PageSize: pageSize, Total: len(entries)}, nil
}

func (r *memAssessmentRepo) FindSimilar(ctx context.Context, id string, limit int) ([]domain.HistoryEntry, error) {
	return []domain.HistoryEntry{}, nil
}

// memProfileRepo es el fake del repositorio de perfiles.
type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: make(map[string]domain.Profile)}
}

func (r *memProfileRepo) UpsertProfile(ctx context.Context, userID, assessmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[userID] = domain.Profile{
		UserID:              userID,
		CurrentAssessmentID: assessmentID,
		UpdatedAt:           time.Now().UTC(),
	}
	return nil
}

func (r *memProfileRepo) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return domain.Profile{}, db.ErrNotFound
	}
	return p, nil
}

// memUserRepo es el fake del repositorio de cuentas.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (r *memUserRepo) Create(ctx context.Context, email, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[email]; exists {
		return "", fmt.Errorf("%w: duplicate email", db.ErrConflict)
	}
	id := uuid.NewString()
	r.users[email] = domain.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	return id, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return domain.User{}, db.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, u := range r.users {
		if u.ID == userID {
			u.PasswordHash = hash
			r.users[email] = u
			return nil
		}
	}
	return db.ErrNotFound
}

func (r *memUserRepo) TouchSignIn(ctx context.Context, userID string) error { return nil }

// testServer agrupa el router armado con fakes y sus piezas observables.
type testServer struct {
	engine      *gin.Engine
	repo        *memAssessmentRepo
	profiles    *memProfileRepo
	users       *memUserRepo
	bank        *questionbank.Bank
	caches      *db.CacheSet
	llmRouter   *llm.Router
	quota       quota.Limiter
	assessments *service.AssessmentService
}

func newTestServer(providers ...llm.Provider) (*testServer, error) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	bank, err := questionbank.Load()
	if err != nil {
		return nil, err
	}
	personas, err := persona.Load()
	if err != nil {
		return nil, err
	}

	caches := db.NewCacheSet()
	repo := newMemAssessmentRepo(caches)
	profiles := newMemProfileRepo()
	users := newMemUserRepo()

	llmRouter := llm.NewRouter(logger, providers...)
	quotaTracker := quota.NewTracker()
	sc := scorer.New(bank)

	jwtSvc := service.NewJWTService("test-secret", time.Hour, 24*time.Hour)
	authSvc := service.NewAuthService(logger, users, jwtSvc)
	assessmentSvc := service.NewAssessmentService(logger, bank, sc, personas, repo, profiles, llmRouter, quotaTracker, caches)

	cfg := &config.Config{
		Environment:    "development",
		RequestTimeout: 30 * time.Second,
	}
	metricsReg := metrics.New(caches.Stats)
	limiter := ratelimit.New()

	engine := NewRouter(RouterDeps{
		Logger:      logger,
		Config:      cfg,
		Metrics:     metricsReg,
		Limiter:     limiter,
		JWT:         jwtSvc,
		Assessments: NewAssessmentHandler(logger, assessmentSvc, metricsReg),
		Auth:        NewAuthHandler(logger, authSvc, jwtSvc),
		Questions:   NewQuestionHandler(bank),
		Profiles:    NewProfileHandler(logger, assessmentSvc),
		Health:      NewHealthHandler(nil, caches, llmRouter, metricsReg),
	})

	return &testServer{
		engine:      engine,
		repo:        repo,
		profiles:    profiles,
		users:       users,
		bank:        bank,
		caches:      caches,
		llmRouter:   llmRouter,
		quota:       quotaTracker,
		assessments: assessmentSvc,
	}, nil
}

// balancedPayload arma un body de envío con n ítems por rasgo al mismo valor.
func (s *testServer) balancedPayload(perTrait, value int) map[string]int {
	responses := map[string]int{}
	counts := map[string]int{}
	for _, q := range s.bank.All() {
		if counts[q.Trait] < perTrait {
			responses[q.ID] = value
			counts[q.Trait]++
		}
	}
	return responses
}
