package llm

import (
	"sync"
	"time"
)

// CircuitState es el estado del breaker.
type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 3
	defaultRecoveryTimeout  = 60 * time.Second
)

// CircuitBreaker protege un downstream con la máquina Closed/Open/Half-Open.
// Las mutaciones de estado van serializadas bajo mutex; la sonda half-open se
// admite de forma optimista (una llamada extra en carrera es aceptable).
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker crea un breaker con umbral 3 y recuperación de 60s.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		recoveryTimeout:  defaultRecoveryTimeout,
		now:              time.Now,
		state:            StateClosed,
	}
}

// NewCircuitBreakerWithOptions permite ajustar umbral, timeout y reloj.
// El reloj inyectable existe para los tests de transición.
func NewCircuitBreakerWithOptions(name string, threshold int, recovery time.Duration, now func() time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(name)
	if threshold > 0 {
		cb.failureThreshold = threshold
	}
	if recovery > 0 {
		cb.recoveryTimeout = recovery
	}
	if now != nil {
		cb.now = now
	}
	return cb
}

// AllowRequest decide si la llamada puede pasar según el estado actual.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.recoveryTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}
	return false
}

// RecordSuccess cierra el circuito tras una sonda exitosa y resetea el
// contador en estado cerrado.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failureCount = 0
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure cuenta la falla y abre el circuito al alcanzar el umbral.
// Una sonda fallida reabre de inmediato.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
		}
	}
}

// State devuelve el estado actual.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name identifica el downstream protegido.
func (cb *CircuitBreaker) Name() string { return cb.name }
