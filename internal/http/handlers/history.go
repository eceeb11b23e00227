package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"affection_pvp/internal/logger"
	"affection_pvp/internal/repository"

	"github.com/gin-gonic/gin"
)

// History returns the balance and recent matches of a session.
// GET /api/v1/pvp/history/:sessionId?limit=20
func (h *Handler) History(c *gin.Context) {
	sessionID := c.Param("sessionId")

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, 100)
	}

	ctx := c.Request.Context()

	session, err := h.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		logger.Error("history: load session", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	matches, err := h.Records.ListBySession(ctx, sessionID, limit)
	if err != nil {
		logger.Error("history: list matches", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	stats, err := h.Records.Stats(ctx, sessionID)
	if err != nil {
		logger.Error("history: stats", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"stats":   stats,
		"matches": matches,
	})
}
