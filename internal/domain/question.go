package domain

// Question es un ítem inmutable del banco de preguntas.
type Question struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Trait   string  `json:"trait"`
	Facet   string  `json:"facet"`
	Reverse bool    `json:"reverse"`
	Weight  float64 `json:"weight"`
}

// ResponseSet mapea id de pregunta a valor ordinal 1-5.
type ResponseSet map[string]int

// Códigos de rasgo OCEAN en orden canónico.
var TraitCodes = []string{"O", "C", "E", "A", "N"}

// TraitNames mapea código corto a nombre largo.
var TraitNames = map[string]string{
	"O": "Openness",
	"C": "Conscientiousness",
	"E": "Extraversion",
	"A": "Agreeableness",
	"N": "Neuroticism",
}
