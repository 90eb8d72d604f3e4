package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lifesync-engine/internal/questionbank"
)

// QuestionHandler sirve el banco de preguntas.
type QuestionHandler struct {
	bank *questionbank.Bank
}

func NewQuestionHandler(bank *questionbank.Bank) *QuestionHandler {
	return &QuestionHandler{bank: bank}
}

// List maneja GET /v1/questions?limit=N. Con límite, el subconjunto sale
// balanceado entre los cinco rasgos.
func (h *QuestionHandler) List(c *gin.Context) {
	limitParam := c.Query("limit")

	questions := h.bank.All()
	if limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		questions = h.bank.Balanced(limit)
	}

	type questionResponse struct {
		ID      string `json:"id"`
		Text    string `json:"text"`
		Trait   string `json:"trait"`
		Facet   string `json:"facet"`
		Reverse bool   `json:"reverse"`
	}
	out := make([]questionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionResponse{
			ID:      q.ID,
			Text:    q.Text,
			Trait:   q.Trait,
			Facet:   q.Facet,
			Reverse: q.Reverse,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(out),
		"questions": out,
	})
}
