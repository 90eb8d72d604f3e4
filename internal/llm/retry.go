package llm

import (
	"context"
	"strings"
	"time"
)

// Esquema de reintentos por modelo: hasta 5 intentos con esperas fijas.
// Errores 429/quota/rate-limit duplican la espera del intento.
var backoffSchedule = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

const maxAttemptsPerModel = 5

// isRateLimited detecta mensajes de cuota o límite de tasa del proveedor.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}

// isNonRetriable detecta fallas de configuración que no mejoran reintentando.
func isNonRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"api key", "api_key", "permission denied", "unauthorized", "401", "403", "invalid authentication"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// generateWithRetries ejecuta call hasta maxAttemptsPerModel veces con el
// esquema de backoff. La cancelación del contexto corta entre intentos y
// se devuelve en lugar de seguir.
func generateWithRetries(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttemptsPerModel; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if isNonRetriable(err) {
			return "", err
		}
		if attempt == maxAttemptsPerModel-1 {
			break
		}

		wait := backoffSchedule[attempt]
		if isRateLimited(err) {
			wait *= 2
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
