package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckpointIssuer recomputes the access checkpoint for a user and writes it
// to the response. Implemented by the checkpoint refresher; auth only needs
// to trigger it after login and onboarding.
type CheckpointIssuer interface {
	IssueCookies(c *gin.Context, userID string) error
}

// Handlers contains the auth HTTP handlers
type Handlers struct {
	service   *Service
	refresher CheckpointIssuer
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service *Service, refresher CheckpointIssuer) *Handlers {
	return &Handlers{service: service, refresher: refresher}
}

// Register handles user registration
// POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			status := http.StatusBadRequest
			if authErr.Code == ErrEmailExists.Code {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to register user",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "registration successful",
		"user":    toUserResponse(user),
	})
}

// Login handles user login
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	ipAddress := c.ClientIP()
	userAgent := c.GetHeader("User-Agent")

	response, err := h.service.Login(c.Request.Context(), req, ipAddress, userAgent)
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			status := http.StatusUnauthorized
			if authErr.Code == ErrAccountBanned.Code {
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to login",
		})
		return
	}

	// A fresh login gets a fresh checkpoint; failure here is non-fatal since
	// the gateway falls back to the durable store when flags are missing.
	if h.refresher != nil {
		if err := h.refresher.IssueCookies(c, response.User.ID); err != nil {
			c.Header("X-Checkpoint-Refresh", "failed")
		}
	}

	c.JSON(http.StatusOK, response)
}

// Refresh handles token refresh
// POST /api/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	response, err := h.service.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to refresh tokens",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// Logout handles user logout
// POST /api/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Even without refresh token, consider it a successful logout
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		return
	}

	// Best effort; the token expires on its own either way
	_ = h.service.Logout(c.Request.Context(), req.RefreshToken)

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll handles logging out all sessions
// POST /api/auth/logout-all
func (h *Handlers) LogoutAll(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   ErrUnauthorized.Code,
			"message": ErrUnauthorized.Message,
		})
		return
	}

	if err := h.service.LogoutAll(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to logout all sessions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all sessions logged out"})
}

// ChangePassword handles password change
// POST /api/auth/change-password
func (h *Handlers) ChangePassword(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   ErrUnauthorized.Code,
			"message": ErrUnauthorized.Message,
		})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), userID, req); err != nil {
		if authErr, ok := err.(AuthError); ok {
			status := http.StatusBadRequest
			if authErr.Code == ErrInvalidCredentials.Code {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to change password",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed successfully"})
}

// CompleteOnboarding marks the user's onboarding done and returns fresh tokens
// POST /api/auth/complete-onboarding
func (h *Handlers) CompleteOnboarding(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   ErrUnauthorized.Code,
			"message": ErrUnauthorized.Message,
		})
		return
	}

	tokenPair, err := h.service.CompleteOnboarding(c.Request.Context(), userID, GetDeviceID(c), c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		if authErr, ok := err.(AuthError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "failed to complete onboarding",
		})
		return
	}

	if h.refresher != nil {
		if err := h.refresher.IssueCookies(c, userID); err != nil {
			c.Header("X-Checkpoint-Refresh", "failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "onboarding completed",
		"tokens":  tokenPair,
	})
}

// GetMe returns the current user's profile
// GET /api/auth/me
func (h *Handlers) GetMe(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   ErrUnauthorized.Code,
			"message": ErrUnauthorized.Message,
		})
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   ErrUserNotFound.Code,
			"message": ErrUserNotFound.Message,
		})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// RegisterRoutes registers all auth routes
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup, jwtManager *JWTManager) {
	// Public routes (no auth required)
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)
	router.POST("/logout", h.Logout)

	// Protected routes (auth required)
	protected := router.Group("")
	protected.Use(Middleware(jwtManager))
	{
		protected.GET("/me", h.GetMe)
		protected.POST("/logout-all", h.LogoutAll)
		protected.POST("/change-password", h.ChangePassword)
		protected.POST("/complete-onboarding", h.CompleteOnboarding)
	}
}
