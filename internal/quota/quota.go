package quota

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultDailyLimit  = 10
	defaultHourlyLimit = 2
)

// Tracker lleva ventanas deslizantes por identidad (user id, o IP para
// anónimos) del uso de generación LLM. En memoria: se resetea al reiniciar
// el proceso y no es autoritativo entre instancias; combinado con el rate
// limiter más estricto forma defensa en capas.
type Tracker struct {
	mu          sync.Mutex
	usage       map[string][]time.Time
	dailyLimit  int
	hourlyLimit int
	now         func() time.Time
}

// NewTracker crea el tracker con los topes por defecto (10/día, 2/hora).
func NewTracker() *Tracker {
	return &Tracker{
		usage:       make(map[string][]time.Time),
		dailyLimit:  defaultDailyLimit,
		hourlyLimit: defaultHourlyLimit,
		now:         time.Now,
	}
}

// NewTrackerWithOptions permite ajustar topes y reloj para tests.
func NewTrackerWithOptions(daily, hourly int, now func() time.Time) *Tracker {
	t := NewTracker()
	if daily > 0 {
		t.dailyLimit = daily
	}
	if hourly > 0 {
		t.hourlyLimit = hourly
	}
	if now != nil {
		t.now = now
	}
	return t
}

// Check responde si la identidad tiene cupo restante. La poda de entradas
// vencidas es perezosa, al momento del acceso.
func (t *Tracker) Check(identity string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.prune(identity)

	daily := len(entries)
	if daily >= t.dailyLimit {
		return false, fmt.Sprintf("Daily limit of %d generations exceeded. Try again tomorrow.", t.dailyLimit)
	}

	hourAgo := t.now().Add(-time.Hour)
	hourly := 0
	for _, ts := range entries {
		if ts.After(hourAgo) {
			hourly++
		}
	}
	if hourly >= t.hourlyLimit {
		return false, fmt.Sprintf("Hourly limit of %d generations exceeded. Try again later.", t.hourlyLimit)
	}
	return true, ""
}

// Record registra un uso exitoso.
func (t *Tracker) Record(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.prune(identity)
	t.usage[identity] = append(entries, t.now())
}

// Stats devuelve los contadores actuales de la identidad.
func (t *Tracker) Stats(identity string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.prune(identity)
	hourAgo := t.now().Add(-time.Hour)
	hourly := 0
	for _, ts := range entries {
		if ts.After(hourAgo) {
			hourly++
		}
	}
	return map[string]int{
		"daily":        len(entries),
		"hourly":       hourly,
		"daily_limit":  t.dailyLimit,
		"hourly_limit": t.hourlyLimit,
	}
}

// Reset borra el cupo de una identidad (función administrativa).
func (t *Tracker) Reset(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.usage, identity)
}

// prune descarta entradas fuera de la ventana diaria. Requiere el mutex.
func (t *Tracker) prune(identity string) []time.Time {
	dayAgo := t.now().Add(-24 * time.Hour)
	entries := t.usage[identity][:0:0]
	for _, ts := range t.usage[identity] {
		if ts.After(dayAgo) {
			entries = append(entries, ts)
		}
	}
	if len(entries) == 0 {
		delete(t.usage, identity)
	} else {
		t.usage[identity] = entries
	}
	return entries
}
