package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jitenkr2030/video-shiksha/models"
	"github.com/jitenkr2030/video-shiksha/service"
)

// Handler carries the handlers' dependencies; everything is injected at
// composition time.
type Handler struct {
	Store        models.Store
	Artifacts    service.ArtifactStore
	Orchestrator *service.Orchestrator
	Credits      *service.Credits
	Pricing      *service.Pricing
	Ledger       *service.Ledger
	SignupGrant  int64
}

// userID pulls the caller identity from the X-User-ID header. Session and
// auth mechanics live outside this service.
func (h *Handler) userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return "", false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortErr(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
