package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheSet agrupa las tres cachés en proceso del servicio, todas LRU con TTL.
// Son locales al proceso; en cluster la consistencia es eventual.
type CacheSet struct {
	Personas    *expirable.LRU[string, any]
	Assessments *expirable.LRU[string, any]
	History     *expirable.LRU[string, any]
}

// NewCacheSet crea las cachés con los tamaños y TTL del diseño:
// personas 100/1h, assessments 500/5m, history 200/1m.
func NewCacheSet() *CacheSet {
	return &CacheSet{
		Personas:    expirable.NewLRU[string, any](100, nil, 3600*time.Second),
		Assessments: expirable.NewLRU[string, any](500, nil, 300*time.Second),
		History:     expirable.NewLRU[string, any](200, nil, 60*time.Second),
	}
}

// Key arma una clave determinista a partir de método y argumentos.
func Key(method string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ":")
}

// InvalidateAssessment elimina toda entrada cuya clave contenga el id.
// O(tamaño de caché), que es pequeño por construcción.
func (c *CacheSet) InvalidateAssessment(assessmentID string) int {
	return removeMatching(c.Assessments, assessmentID)
}

// InvalidateHistory elimina las entradas de historial de un usuario.
func (c *CacheSet) InvalidateHistory(userID string) int {
	return removeMatching(c.History, userID)
}

func removeMatching(cache *expirable.LRU[string, any], needle string) int {
	removed := 0
	for _, k := range cache.Keys() {
		if strings.Contains(k, needle) {
			if cache.Remove(k) {
				removed++
			}
		}
	}
	return removed
}

// Stats expone los tamaños actuales para /metrics y /health.
func (c *CacheSet) Stats() map[string]int {
	return map[string]int{
		"personas":    c.Personas.Len(),
		"assessments": c.Assessments.Len(),
		"history":     c.History.Len(),
	}
}
