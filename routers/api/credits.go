package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.Store.EnsureUser(userID, h.SignupGrant); err != nil {
		abortErr(c, err)
		return
	}
	balance, err := h.Credits.Balance(userID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) TopUp(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "top-up"
	}
	if err := h.Store.EnsureUser(userID, h.SignupGrant); err != nil {
		abortErr(c, err)
		return
	}
	balance, err := h.Credits.Credit(userID, req.Amount, req.Reason)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Refund is the explicit, manual path for giving credits back after a failed
// or timed-out stage; debits are never refunded automatically.
func (h *Handler) Refund(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req struct {
		Amount int64  `json:"amount"`
		JobID  string `json:"job_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reason := "refund"
	if req.JobID != "" {
		reason = "refund for job " + req.JobID
	}
	balance, err := h.Credits.Credit(userID, req.Amount, reason)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) ListCreditEntries(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	entries, err := h.Store.EntriesByUser(userID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
