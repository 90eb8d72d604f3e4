package db

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Errores tipados de la capa de persistencia. Los errores de la librería
// cliente nunca salen de este paquete sin envolver.
var (
	ErrNotFound    = errors.New("db: not found")
	ErrConflict    = errors.New("db: conflict")
	ErrInvalid     = errors.New("db: invalid operation")
	ErrUnavailable = errors.New("db: temporarily unavailable")
	ErrPermission  = errors.New("db: permission denied")
)

var transientPatterns = []string{
	"connection",
	"timeout",
	"network",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"rate limit",
	"deadlock",
}

var permanentPatterns = []string{
	"syntax error",
	"relation does not exist",
	"column does not exist",
	"permission denied",
	"authentication failed",
	"invalid credentials",
	"unique constraint",
	"foreign key constraint",
	"not null constraint",
	"check constraint",
}

// IsTransient clasifica un error como reintentanble. Errores permanentes
// (sintaxis, relación inexistente, violación de constraint, permisos)
// fallan rápido; lo desconocido tampoco se reintenta.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// Clase 08: fallas de conexión. 40P01: deadlock. 57P03: arrancando.
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40P01",
			pgErr.Code == "57P03",
			pgErr.Code == "53300":
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// WithRetry ejecuta op con hasta 3 intentos y backoff 1→2→4s con jitter,
// aplicando attemptTimeout a cada intento. Solo errores transitorios se
// reintentan; la cancelación del contexto corta el ciclo entre intentos.
func WithRetry(ctx context.Context, attemptTimeout time.Duration, op func(ctx context.Context) error) error {
	backoff := retry.WithJitterPercent(10, retry.NewExponential(1*time.Second))
	backoff = retry.WithMaxRetries(2, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// El deadline global manda: no seguimos reintentando.
			return ctx.Err()
		}
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
