package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifesync-engine/internal/config"
	"lifesync-engine/internal/metrics"
	"lifesync-engine/internal/ratelimit"
)

const requestIDKey = "request_id"

// RequestID propaga o asigna el X-Request-ID y lo devuelve en la respuesta.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestIDFrom recupera el id asignado a la request.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// zapLoggerMiddleware emite una línea JSON por request.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []zap.Field{
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", c.Writer.Status()),
			zap.Int64("duration_ms", latency.Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			reason := c.Errors.String()
			if len(reason) > 200 {
				reason = reason[:200]
			}
			fields = append(fields, zap.String("error", reason))
		}
		logger.Info("request", fields...)
	}
}

// metricsMiddleware acumula contadores por request terminada.
func metricsMiddleware(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware: en desarrollo se admite localhost automáticamente; en
// producción solo ALLOWED_ORIGINS.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	devMode := !cfg.IsProduction()

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			permit := allowed[origin]
			if !permit && devMode {
				permit = strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1")
			}
			if permit {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware aplica los buckets del endpoint. 429 lleva el hint
// de reintento y el request id.
func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			c.Next()
			return
		}
		if ok, retryAfter := limiter.Allow(endpoint, c.ClientIP()); !ok {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
				"request_id":          RequestIDFrom(c),
			})
			return
		}
		c.Next()
	}
}

// timeoutMiddleware acota toda la request al presupuesto global. El handler
// observa la cancelación vía contexto; al vencer se responde 408 estable.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		tw := &timeoutWriter{ResponseWriter: c.Writer}
		c.Writer = tw

		done := make(chan struct{})
		go func() {
			defer func() {
				if r := recover(); r != nil {
					tw.mu.Lock()
					if !tw.timedOut && !tw.wrote {
						tw.wrote = true
						tw.ResponseWriter.WriteHeader(http.StatusInternalServerError)
						_, _ = tw.ResponseWriter.Write([]byte(`{"error":"internal server error"}`))
					}
					tw.mu.Unlock()
				}
				close(done)
			}()
			c.Next()
		}()

		writeTimeout := func() {
			tw.mu.Lock()
			defer tw.mu.Unlock()
			if tw.wrote || tw.timedOut {
				return
			}
			tw.timedOut = true
			tw.ResponseWriter.Header().Set("Content-Type", "application/json")
			tw.ResponseWriter.WriteHeader(http.StatusRequestTimeout)
			_, _ = tw.ResponseWriter.Write([]byte(`{"error":"request timeout","request_id":"` + RequestIDFrom(c) + `"}`))
		}

		select {
		case <-done:
			// El handler pudo haber salido por el deadline sin escribir nada.
			if ctx.Err() != nil {
				writeTimeout()
			}
		case <-ctx.Done():
			writeTimeout()
			<-done
			c.Abort()
		}
	}
}

// timeoutWriter descarta escrituras tardías de un handler que venció.
type timeoutWriter struct {
	gin.ResponseWriter
	mu       sync.Mutex
	timedOut bool
	wrote    bool
}

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return len(b), nil
	}
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
