package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifesync-engine/internal/config"
	"lifesync-engine/internal/metrics"
	"lifesync-engine/internal/ratelimit"
	"lifesync-engine/internal/service"
)

// RouterDeps agrupa las dependencias del router HTTP.
type RouterDeps struct {
	Logger      *zap.Logger
	Config      *config.Config
	Metrics     *metrics.Registry
	Limiter     *ratelimit.Limiter
	JWT         *service.JWTService
	Assessments *AssessmentHandler
	Auth        *AuthHandler
	Questions   *QuestionHandler
	Profiles    *ProfileHandler
	Health      *HealthHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	configureLimits(d.Limiter)

	r.Use(
		requestIDMiddleware(),
		zapLoggerMiddleware(d.Logger),
		gin.Recovery(),
		corsMiddleware(d.Config),
		metricsMiddleware(d.Metrics),
		timeoutMiddleware(requestTimeout(d.Config)),
		rateLimitMiddleware(d.Limiter),
		authOptionalMiddleware(d.JWT),
	)

	r.GET("/health", d.Health.Get)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	v1 := r.Group("/v1")
	v1.GET("/questions", d.Questions.List)

	v1.POST("/assessments", d.Assessments.Create)
	v1.POST("/assessments/sync", d.Assessments.Sync)
	v1.GET("/assessments/:id", d.Assessments.Get)
	v1.POST("/assessments/:id/generate_explanation", d.Assessments.GenerateExplanation)
	v1.GET("/assessments/:id/explanation", d.Assessments.GetExplanation)
	v1.GET("/assessments/:id/history", d.Assessments.History)
	v1.GET("/assessments/:id/similar", d.Assessments.Similar)

	v1.GET("/profiles/:user_id", d.Profiles.Get)

	auth := v1.Group("/auth")
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/reset-password", d.Auth.ResetPassword)
	auth.POST("/update-password", d.Auth.UpdatePassword)
	auth.POST("/logout", d.Auth.Logout)

	return r
}

// configureLimits registra los buckets por endpoint. Las claves usan la ruta
// completa, así dos endpoints jamás comparten bucket.
func configureLimits(l *ratelimit.Limiter) {
	l.Configure("/v1/auth/signup", ratelimit.PerHour(5))
	l.Configure("/v1/auth/login", ratelimit.PerHour(10), ratelimit.PerMinute(3))
	l.Configure("/v1/auth/reset-password", ratelimit.PerHour(3))
	l.Configure("/v1/assessments/:id/generate_explanation", ratelimit.PerDay(10), ratelimit.PerHour(2))
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return 60 * time.Second
}
