package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/models"
	"github.com/safewatch/signaling/internal/store"
)

// Subscribe handles subscription intake. REST rather than the socket because
// large receipt uploads survive reconnects better over plain HTTP.
func Subscribe(st *store.Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		fileName, err := st.SaveReceipt(req.Name, req.Receipt)
		if err != nil {
			log.Error().Err(err).Str("name", req.Name).Msg("failed to save receipt")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		sub := models.Subscription{
			ID:              time.Now().UnixMilli(),
			Name:            req.Name,
			Email:           req.Email,
			Phone:           req.Phone,
			ReceiptFileName: fileName,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			Status:          models.SubscriptionPending,
		}
		if err := st.AppendSubscription(sub); err != nil {
			log.Error().Err(err).Msg("failed to record subscription")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		log.Info().Str("name", req.Name).Str("email", req.Email).Str("receipt", fileName).Msg("subscription received")
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CustomerLogin verifies credentials against confirmed subscriptions.
func CustomerLogin(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		sub, ok := st.FindCustomer(req.Username, req.Password)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid credentials or account pending review",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "name": sub.Name})
	}
}
