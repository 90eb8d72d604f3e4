package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/questionbank"
)

// Versiones horneadas en el build. Un cambio de ScoringVersion invalida
// comparaciones entre ejecuciones.
const (
	ScoringVersion = "v2.1.0-go"
	EngineVersion  = "2.0.0"
)

// Scorer es la función pura y versionada de puntuación OCEAN.
type Scorer struct {
	bank *questionbank.Bank
}

// New crea un Scorer sobre un catálogo cargado.
func New(bank *questionbank.Bank) *Scorer {
	return &Scorer{bank: bank}
}

// Score puntúa un ResponseSet. Nunca falla: datos insuficientes producen
// dimensiones ausentes (nil), jamás un 0.5 imputado.
func (s *Scorer) Score(responses domain.ResponseSet) domain.ScoringResult {
	traitSums := make(map[string]float64)
	traitDenoms := make(map[string]float64)
	facetSums := make(map[string]float64)
	facetDenoms := make(map[string]float64)

	scaleMin := float64(s.bank.ScaleMin())
	scaleMax := float64(s.bank.ScaleMax())

	validCount := 0
	for qid, v := range responses {
		q, ok := s.bank.Get(qid)
		if !ok {
			continue
		}
		if v < s.bank.ScaleMin() || v > s.bank.ScaleMax() {
			continue
		}
		validCount++

		scaled := (float64(v) - scaleMin) / (scaleMax - scaleMin)
		if q.Reverse {
			scaled = 1.0 - scaled
		}
		traitSums[q.Trait] += scaled * q.Weight
		traitDenoms[q.Trait] += q.Weight
		facetSums[q.Facet] += scaled * q.Weight
		facetDenoms[q.Facet] += q.Weight
	}

	traits := make(map[string]*float64, 5)
	ocean := make(map[string]*float64, 5)
	traitConfidence := make(map[string]float64, 5)
	traitsWithData := make([]string, 0, 5)

	for _, code := range domain.TraitCodes {
		denom := traitDenoms[code]
		if denom >= float64(questionbank.MinQuestionsPerTrait) {
			score := round3(traitSums[code] / denom)
			traits[s.bank.TraitName(code)] = &score
			ocean[code] = ptr(score)
			traitConfidence[s.bank.TraitName(code)] = round3(denom / s.bank.TraitWeight(code))
			traitsWithData = append(traitsWithData, code)
		} else {
			traits[s.bank.TraitName(code)] = nil
			ocean[code] = nil
			traitConfidence[s.bank.TraitName(code)] = 0
		}
	}

	facets := make(map[string]*float64)
	facetConfidence := make(map[string]float64)
	for _, key := range s.bank.FacetKeys() {
		denom := facetDenoms[key]
		name := s.bank.FacetName(key)
		if denom > 0 {
			score := round3(facetSums[key] / denom)
			facets[name] = &score
			facetConfidence[name] = round3(denom / s.bank.FacetWeight(key))
		} else {
			facets[name] = nil
			facetConfidence[name] = 0
		}
	}

	complete := len(traitsWithData) == 5

	var mbti *string
	var nLevel *string
	var personalityCode *string
	if complete {
		code := deriveMBTI(ocean)
		mbti = &code
		level := neuroticismLevel(*ocean["N"])
		nLevel = &level
		pc := fmt.Sprintf("%s-%s", code, level[:1])
		personalityCode = &pc
	}

	personaID := "unknown"
	if mbti != nil {
		personaID = strings.ToLower(*mbti)
	}

	confValues := make([]float64, 0, 5)
	for _, code := range traitsWithData {
		confValues = append(confValues, traitConfidence[s.bank.TraitName(code)])
	}
	global := 0.0
	if len(confValues) > 0 {
		sum := 0.0
		for _, c := range confValues {
			sum += c
		}
		global = round2(sum / float64(len(confValues)))
	}

	result := domain.ScoringResult{
		Ocean:              ocean,
		PersonaID:          personaID,
		MBTIProxy:          mbti,
		Confidence:         global,
		Traits:             traits,
		TraitConfidence:    traitConfidence,
		Facets:             facets,
		FacetConfidence:    facetConfidence,
		TopFacets:          topFacets(facets, 5),
		NeuroticismLevel:   nLevel,
		PersonalityCode:    personalityCode,
		ResponsesCount:     len(responses),
		Coverage:           round1(float64(len(responses)) / float64(s.bank.Len()) * 100),
		HasCompleteProfile: complete,
		TraitsWithData:     traitsWithData,
		Metadata: domain.ScoringMetadata{
			QuizType:       quizType(len(responses)),
			EngineVersion:  EngineVersion,
			ScoringVersion: ScoringVersion,
			InputHash:      hashResponses(responses),
		},
	}
	result.Metadata.OutputHash = hashScores(result.Ocean)
	return result
}

// deriveMBTI convierte el vector OCEAN en el código proxy de cuatro letras.
// Empate exacto en 0.5: letra del extremo alto del eje (E, N, F, J).
func deriveMBTI(ocean map[string]*float64) string {
	axis := func(score float64, high, low string) string {
		if score < 0.5 {
			return low
		}
		return high
	}
	var sb strings.Builder
	sb.WriteString(axis(*ocean["E"], "E", "I"))
	sb.WriteString(axis(*ocean["O"], "N", "S"))
	sb.WriteString(axis(*ocean["A"], "F", "T"))
	sb.WriteString(axis(*ocean["C"], "J", "P"))
	return sb.String()
}

func neuroticismLevel(n float64) string {
	switch {
	case n < 0.35:
		return "Stable"
	case n < 0.65:
		return "Balanced"
	default:
		return "Sensitive"
	}
}

func topFacets(facets map[string]*float64, n int) []domain.FacetRank {
	ranks := make([]domain.FacetRank, 0, len(facets))
	for name, score := range facets {
		if score != nil {
			ranks = append(ranks, domain.FacetRank{Name: name, Score: *score})
		}
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Score != ranks[j].Score {
			return ranks[i].Score > ranks[j].Score
		}
		return ranks[i].Name < ranks[j].Name
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

func quizType(responses int) string {
	if responses >= 60 {
		return "full180"
	}
	return "quick"
}

// hashResponses produce un hash canónico e independiente del orden del mapa.
func hashResponses(responses domain.ResponseSet) string {
	ids := make([]string, 0, len(responses))
	for id := range responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%s=%d;", id, responses[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashScores(ocean map[string]*float64) string {
	type pair struct {
		K string   `json:"k"`
		V *float64 `json:"v"`
	}
	pairs := make([]pair, 0, len(ocean))
	for _, code := range domain.TraitCodes {
		pairs = append(pairs, pair{K: code, V: ocean[code]})
	}
	raw, _ := json.Marshal(pairs)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func ptr(v float64) *float64 { return &v }
