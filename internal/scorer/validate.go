package scorer

import (
	"fmt"
	"sort"
	"strings"

	"lifesync-engine/internal/domain"
	"lifesync-engine/internal/questionbank"
)

// ValidateResponses revisa la cobertura por rasgo de un ResponseSet sin
// puntuarlo. Detecta sets desbalanceados (p. ej. solo Openness), ids
// desconocidos y valores fuera de rango.
func (s *Scorer) ValidateResponses(responses domain.ResponseSet) domain.ValidationReport {
	coverage := make(map[string]int, 5)
	for _, t := range domain.TraitCodes {
		coverage[t] = 0
	}

	var unknown, outOfRange []string
	for qid, v := range responses {
		q, ok := s.bank.Get(qid)
		if !ok {
			unknown = append(unknown, qid)
			continue
		}
		if v < s.bank.ScaleMin() || v > s.bank.ScaleMax() {
			outOfRange = append(outOfRange, qid)
			continue
		}
		coverage[q.Trait]++
	}
	sort.Strings(unknown)
	sort.Strings(outOfRange)

	var missing []string
	for _, t := range domain.TraitCodes {
		if coverage[t] < questionbank.MinQuestionsPerTrait {
			missing = append(missing, t)
		}
	}

	var warnings []domain.ValidationIssue
	if len(unknown) > 0 {
		warnings = append(warnings, domain.ValidationIssue{
			Severity: "error",
			Type:     "invalid_question_ids",
			Message:  fmt.Sprintf("Invalid question IDs: %s", previewIDs(unknown)),
			Count:    len(unknown),
		})
	}
	if len(outOfRange) > 0 {
		warnings = append(warnings, domain.ValidationIssue{
			Severity: "error",
			Type:     "out_of_range_values",
			Message:  fmt.Sprintf("Responses out of [%d,%d]: %s", s.bank.ScaleMin(), s.bank.ScaleMax(), previewIDs(outOfRange)),
			Count:    len(outOfRange),
		})
	}
	for _, t := range missing {
		warnings = append(warnings, domain.ValidationIssue{
			Severity:  "error",
			Type:      "missing_trait",
			Trait:     t,
			TraitName: s.bank.TraitName(t),
			Message: fmt.Sprintf("Trait '%s' has only %d questions (minimum %d required)",
				s.bank.TraitName(t), coverage[t], questionbank.MinQuestionsPerTrait),
			Count:    coverage[t],
			Required: questionbank.MinQuestionsPerTrait,
		})
	}
	for _, t := range domain.TraitCodes {
		if c := coverage[t]; c > 0 && c < questionbank.MinQuestionsPerTrait {
			warnings = append(warnings, domain.ValidationIssue{
				Severity:  "warning",
				Type:      "low_coverage",
				Trait:     t,
				TraitName: s.bank.TraitName(t),
				Message: fmt.Sprintf("Trait '%s' has low coverage: %d questions (recommended: %d+)",
					s.bank.TraitName(t), c, questionbank.MinQuestionsPerTrait),
				Count:    c,
				Required: questionbank.MinQuestionsPerTrait,
			})
		}
	}

	invalid := len(unknown) + len(outOfRange)
	return domain.ValidationReport{
		IsValid:        len(missing) == 0 && invalid == 0,
		Warnings:       warnings,
		Coverage:       coverage,
		MissingTraits:  missing,
		UnknownIDs:     unknown,
		OutOfRange:     outOfRange,
		TotalResponses: len(responses),
		ValidResponses: len(responses) - invalid,
	}
}

func previewIDs(ids []string) string {
	const max = 5
	if len(ids) <= max {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s (and %d more)", strings.Join(ids[:max], ", "), len(ids)-max)
}
