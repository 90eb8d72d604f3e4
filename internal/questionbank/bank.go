package questionbank

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"lifesync-engine/internal/domain"
)

//go:embed data/questions.json
var rawBank []byte

// MinQuestionsPerTrait es el mínimo de ítems válidos para puntuar un rasgo.
const MinQuestionsPerTrait = 3

// Bank es el catálogo inmutable de preguntas con sus tablas auxiliares.
type Bank struct {
	scaleMin int
	scaleMax int

	byID    map[string]domain.Question
	ordered []domain.Question

	traitNames map[string]string
	facetNames map[string]string

	traitWeights map[string]float64
	facetWeights map[string]float64
}

type bankFile struct {
	Scale struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"scale"`
	Traits    map[string]string `json:"traits"`
	Facets    map[string]string `json:"facets"`
	Questions []domain.Question `json:"questions"`
}

// Load parsea el catálogo embebido y valida sus invariantes.
func Load() (*Bank, error) {
	var f bankFile
	if err := json.Unmarshal(rawBank, &f); err != nil {
		return nil, fmt.Errorf("questionbank: parse catalog: %w", err)
	}

	b := &Bank{
		scaleMin:     f.Scale.Min,
		scaleMax:     f.Scale.Max,
		byID:         make(map[string]domain.Question, len(f.Questions)),
		ordered:      f.Questions,
		traitNames:   f.Traits,
		facetNames:   f.Facets,
		traitWeights: make(map[string]float64),
		facetWeights: make(map[string]float64),
	}

	traitCounts := make(map[string]int)
	for _, q := range f.Questions {
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("questionbank: duplicate question id %s", q.ID)
		}
		if q.Weight <= 0 {
			return nil, fmt.Errorf("questionbank: question %s has non-positive weight", q.ID)
		}
		if _, ok := f.Traits[q.Trait]; !ok {
			return nil, fmt.Errorf("questionbank: question %s has unknown trait %s", q.ID, q.Trait)
		}
		b.byID[q.ID] = q
		b.traitWeights[q.Trait] += q.Weight
		b.facetWeights[q.Facet] += q.Weight
		traitCounts[q.Trait]++
	}
	for _, t := range domain.TraitCodes {
		if traitCounts[t] < MinQuestionsPerTrait {
			return nil, fmt.Errorf("questionbank: trait %s has only %d items", t, traitCounts[t])
		}
	}
	return b, nil
}

// Get devuelve la pregunta por id.
func (b *Bank) Get(id string) (domain.Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// All devuelve todas las preguntas en orden de id.
func (b *Bank) All() []domain.Question {
	out := make([]domain.Question, len(b.ordered))
	copy(out, b.ordered)
	return out
}

// Len es el tamaño del catálogo.
func (b *Bank) Len() int { return len(b.ordered) }

// ScaleMin y ScaleMax acotan el valor ordinal admitido.
func (b *Bank) ScaleMin() int { return b.scaleMin }
func (b *Bank) ScaleMax() int { return b.scaleMax }

// TraitName resuelve el nombre largo de un código de rasgo.
func (b *Bank) TraitName(code string) string {
	if n, ok := b.traitNames[code]; ok {
		return n
	}
	return code
}

// FacetName resuelve el nombre de presentación de una faceta.
func (b *Bank) FacetName(key string) string {
	if n, ok := b.facetNames[key]; ok {
		return n
	}
	return key
}

// FacetKeys devuelve las claves de faceta en orden estable.
func (b *Bank) FacetKeys() []string {
	keys := make([]string, 0, len(b.facetNames))
	for k := range b.facetNames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TraitWeight es el peso total del catálogo para un rasgo.
func (b *Bank) TraitWeight(code string) float64 { return b.traitWeights[code] }

// FacetWeight es el peso total del catálogo para una faceta.
func (b *Bank) FacetWeight(key string) float64 { return b.facetWeights[key] }

// Balanced selecciona limit preguntas repartidas round-robin entre rasgos,
// de modo que cada rasgo reciba ⌊limit/5⌋ o ⌈limit/5⌉ ítems.
func (b *Bank) Balanced(limit int) []domain.Question {
	if limit <= 0 || limit >= len(b.ordered) {
		return b.All()
	}

	byTrait := make(map[string][]domain.Question)
	for _, q := range b.ordered {
		byTrait[q.Trait] = append(byTrait[q.Trait], q)
	}

	out := make([]domain.Question, 0, limit)
	idx := make(map[string]int)
	for len(out) < limit {
		progressed := false
		for _, t := range domain.TraitCodes {
			if len(out) == limit {
				break
			}
			pool := byTrait[t]
			if idx[t] < len(pool) {
				out = append(out, pool[idx[t]])
				idx[t]++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
