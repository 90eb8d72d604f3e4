package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifesync-engine/internal/db"
	"lifesync-engine/internal/llm"
	"lifesync-engine/internal/metrics"
)

// HealthHandler expone liveness con el estado del pool, cachés y breakers.
type HealthHandler struct {
	pool    *pgxpool.Pool
	caches  *db.CacheSet
	router  *llm.Router
	metrics *metrics.Registry
}

func NewHealthHandler(pool *pgxpool.Pool, caches *db.CacheSet, router *llm.Router, m *metrics.Registry) *HealthHandler {
	return &HealthHandler{pool: pool, caches: caches, router: router, metrics: m}
}

// Get maneja GET /health.
func (h *HealthHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if h.pool == nil {
		dbStatus = "uninitialized"
	} else if err := db.Ping(ctx, h.pool); err != nil {
		dbStatus = "unreachable"
	}

	breakers := make(map[string]string)
	for _, name := range h.router.Providers() {
		state := h.router.Breaker(name).State()
		breakers[name] = string(state)
		h.metrics.SetBreakerOpen(name, state == llm.StateOpen)
	}

	var poolStats map[string]any
	if h.pool != nil {
		s := h.pool.Stat()
		poolStats = map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"pool":     poolStats,
		"caches":   h.caches.Stats(),
		"breakers": breakers,
		"metrics":  h.metrics.Snapshot(),
	})
}
