package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifesync-engine/internal/service"
	"lifesync-engine/internal/validate"
)

const claimsKey = "auth_claims"

// AuthHandler compone los endpoints de cuentas.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	jwt    *service.JWTService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, jwt *service.JWTService) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth, jwt: jwt}
}

// authOptionalMiddleware parsea el bearer token si está presente, sin
// exigirlo: varios endpoints sirven a anónimos.
func authOptionalMiddleware(jwt *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if claims, err := jwt.Parse(token); err == nil && claims.TokenType == "access" {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *service.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup maneja POST /v1/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var fieldErr *validate.FieldError
		if asFieldError(err, &fieldErr) {
			badRequestDetail(c, fieldErr)
			return
		}
		// Mensaje genérico: sin enumeración de cuentas.
		badRequest(c, "could not create account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Login maneja POST /v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":      "invalid credentials",
			"request_id": RequestIDFrom(c),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ResetPassword maneja POST /v1/auth/reset-password. La respuesta es la
// misma exista o no la cuenta.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.auth.ResetPassword(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, gin.H{
		"message": "If the account exists, a reset link has been sent.",
	})
}

// UpdatePassword maneja POST /v1/auth/update-password.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":      "authentication required",
			"request_id": RequestIDFrom(c),
		})
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.auth.UpdatePassword(c.Request.Context(), claims.UserID, req.Password); err != nil {
		var fieldErr *validate.FieldError
		if asFieldError(err, &fieldErr) {
			badRequestDetail(c, fieldErr)
			return
		}
		badRequest(c, "could not update password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// Logout maneja POST /v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.auth.SignOut(claimsFrom(c))
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

func asFieldError(err error, target **validate.FieldError) bool {
	fe, ok := err.(*validate.FieldError)
	if ok {
		*target = fe
	}
	return ok
}
