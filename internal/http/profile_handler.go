package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifesync-engine/internal/service"
	"lifesync-engine/internal/validate"
)

// ProfileHandler sirve el perfil vigente de un usuario.
type ProfileHandler struct {
	logger *zap.Logger
	svc    *service.AssessmentService
}

func NewProfileHandler(logger *zap.Logger, svc *service.AssessmentService) *ProfileHandler {
	return &ProfileHandler{logger: logger, svc: svc}
}

// Get maneja GET /v1/profiles/:user_id.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	if err := validate.UUID("user_id", userID); err != nil {
		badRequestDetail(c, err)
		return
	}

	profile, err := h.svc.Profile(c.Request.Context(), userID)
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":      "profile not found",
				"request_id": RequestIDFrom(c),
			})
			return
		}
		h.logger.Error("get profile failed", zap.String("request_id", RequestIDFrom(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "internal error",
			"request_id": RequestIDFrom(c),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
