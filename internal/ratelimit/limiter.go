package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit describe un tope: events por window.
type Limit struct {
	Events int
	Window time.Duration
}

// PerMinute, PerHour y PerDay son constructores de conveniencia.
func PerMinute(n int) Limit { return Limit{Events: n, Window: time.Minute} }
func PerHour(n int) Limit   { return Limit{Events: n, Window: time.Hour} }
func PerDay(n int) Limit    { return Limit{Events: n, Window: 24 * time.Hour} }

// Limiter mantiene token buckets por (endpoint, ip). Un endpoint puede
// llevar varios límites concurrentes; todos deben admitir la request. Las
// claves van espaciadas por endpoint para que dos rutas jamás compartan
// bucket.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string][]Limit
	buckets map[string][]*rate.Limiter
	lastHit map[string]time.Time
}

// New crea un limiter vacío; los endpoints se registran con Configure.
func New() *Limiter {
	return &Limiter{
		limits:  make(map[string][]Limit),
		buckets: make(map[string][]*rate.Limiter),
		lastHit: make(map[string]time.Time),
	}
}

// Configure fija los límites de un endpoint.
func (l *Limiter) Configure(endpoint string, limits ...Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[endpoint] = limits
}

// Allow decide atómicamente si la IP puede golpear el endpoint. Devuelve
// también el retry hint en segundos cuando se niega.
func (l *Limiter) Allow(endpoint, ip string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[endpoint]
	if !ok || len(limits) == 0 {
		return true, 0
	}

	key := endpoint + "|" + ip
	buckets, ok := l.buckets[key]
	if !ok {
		buckets = make([]*rate.Limiter, len(limits))
		for i, lim := range limits {
			buckets[i] = rate.NewLimiter(rate.Every(lim.Window/time.Duration(lim.Events)), lim.Events)
		}
		l.buckets[key] = buckets
	}
	l.lastHit[key] = time.Now()
	l.pruneIdleLocked()

	// Chequeo en dos fases para no consumir tokens si algún límite niega.
	now := time.Now()
	for i, b := range buckets {
		if b.TokensAt(now) < 1 {
			retry := int(limits[i].Window / time.Duration(limits[i].Events) / time.Second)
			if retry < 1 {
				retry = 1
			}
			return false, retry
		}
	}
	for _, b := range buckets {
		b.AllowN(now, 1)
	}
	return true, 0
}

// pruneIdleLocked elimina buckets sin actividad por más de 48h.
func (l *Limiter) pruneIdleLocked() {
	if len(l.lastHit) < 10000 {
		return
	}
	cutoff := time.Now().Add(-48 * time.Hour)
	for key, last := range l.lastHit {
		if last.Before(cutoff) {
			delete(l.lastHit, key)
			delete(l.buckets, key)
		}
	}
}

// BucketCount expone cuántos buckets viven (para /metrics).
func (l *Limiter) BucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
