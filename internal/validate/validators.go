package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MinPasswordLength se exige en el alta de cuentas.
const MinPasswordLength = 8

var (
	questionIDPattern = regexp.MustCompile(`^Q\d{3}$`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	quizTypes         = map[string]bool{"quick": true, "full180": true, "full": true}
)

// FieldError es el error estructurado que los handlers mapean a 400/422.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UUID valida el formato de un identificador.
func UUID(field, value string) *FieldError {
	if _, err := uuid.Parse(value); err != nil {
		return &FieldError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

// QuestionID valida el formato Q + 3 dígitos.
func QuestionID(id string) *FieldError {
	if !questionIDPattern.MatchString(id) {
		return &FieldError{Field: "question_id", Message: fmt.Sprintf("%q must match Q### format", id)}
	}
	return nil
}

// ResponseValue acota el valor ordinal a [1,5].
func ResponseValue(v int) *FieldError {
	if v < 1 || v > 5 {
		return &FieldError{Field: "value", Message: fmt.Sprintf("%d outside [1,5]", v)}
	}
	return nil
}

// QuizType admite solo los tipos de quiz conocidos.
func QuizType(qt string) *FieldError {
	if qt == "" {
		return nil
	}
	if !quizTypes[qt] {
		return &FieldError{Field: "quiz_type", Message: fmt.Sprintf("unknown quiz type %q", qt)}
	}
	return nil
}

// SanitizeText quita etiquetas HTML y recorta espacios en texto libre.
func SanitizeText(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}

// Email valida con el parser conservador de net/mail más chequeos
// pragmáticos (dominio con punto, sin display name).
func Email(value string) *FieldError {
	value = strings.TrimSpace(value)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Name != "" || addr.Address != value {
		return &FieldError{Field: "email", Message: "invalid email format"}
	}
	at := strings.LastIndexByte(value, '@')
	if at < 1 || !strings.Contains(value[at+1:], ".") {
		return &FieldError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// Password exige el largo mínimo en signup.
func Password(value string) *FieldError {
	if len(value) < MinPasswordLength {
		return &FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// NormalizeIdentifier colapsa un identificador de cuenta: minúsculas, sin
// espacios ni HTML.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(SanitizeText(s))
}
