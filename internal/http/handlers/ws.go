package handlers

import (
	"net/http"
	"strings"

	"affection_pvp/internal/logger"

	"github.com/gin-gonic/gin"
)

const maxSessionIDLen = 128

// WS upgrades /ws/pvp/match/:sessionId. The session id is the only addressing.
func (h *Handler) WS(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	go h.Hub.Serve(conn, sessionID)
}
