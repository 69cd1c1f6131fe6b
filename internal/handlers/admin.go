package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/middleware"
	"github.com/safewatch/signaling/internal/models"
	"github.com/safewatch/signaling/internal/store"
)

const adminTokenTTL = 24 * time.Hour

// AdminLogin verifies operator credentials and issues a session token.
func AdminLogin(st *store.Store, jwtSecret string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		if !st.VerifyAdmin(req.Username, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
			return
		}

		claims := middleware.AdminClaims{
			Username: req.Username,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(adminTokenTTL)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				NotBefore: jwt.NewNumericDate(time.Now()),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate token"})
			return
		}

		log.Info().Str("username", req.Username).Msg("admin logged in")
		c.JSON(http.StatusOK, gin.H{"success": true, "token": tokenString})
	}
}

// ListSubscriptions returns every subscription record for the admin panel.
func ListSubscriptions(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := st.ListSubscriptions()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read subscriptions"})
			return
		}
		if subs == nil {
			subs = []models.Subscription{}
		}
		c.JSON(http.StatusOK, subs)
	}
}

// UpdateSubscriptionStatus confirms or rejects a record, optionally
// activating the credentials assigned by the admin.
func UpdateSubscriptionStatus(st *store.Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		if err := st.UpdateStatus(req.ID, req.Status, req.Username, req.Password); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		log.Info().Int64("id", req.ID).Str("status", req.Status).Msg("subscription status updated")
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ChangeAdminPassword updates an operator account's password.
func ChangeAdminPassword(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		if err := st.ChangeAdminPassword(req.Username, req.NewPassword); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GetAppConfig returns the operator-editable app config (public).
func GetAppConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := st.AppConfig()
		if err != nil {
			// Fall back to defaults rather than failing the client.
			c.JSON(http.StatusOK, models.AppConfig{SupportEmail: "support@safewatch.com"})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// SetAppConfig replaces the app config.
func SetAppConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg models.AppConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		if err := st.SetAppConfig(cfg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
