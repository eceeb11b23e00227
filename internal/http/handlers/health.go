package handlers

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"affection_pvp/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RoomCounter is satisfied by *ws.Hub.
type RoomCounter interface {
	RoomCount() int
}

// HealthHandler serves the probes of the pairing server. Only the ledger is a
// hard dependency: without it no bet can be validated and no match settled.
type HealthHandler struct {
	ledger  Pinger
	rooms   RoomCounter
	started time.Time
	version string
}

func NewHealthHandler(ledger Pinger, rooms RoomCounter, version string) *HealthHandler {
	return &HealthHandler{
		ledger:  ledger,
		rooms:   rooms,
		started: time.Now(),
		version: version,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness never touches dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports the ledger, the limiter backend and the room load.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"rate_limiter": "local",
		"goroutines":   strconv.Itoa(runtime.NumGoroutine()),
	}
	if middleware.RedisEnabled() {
		checks["rate_limiter"] = "redis"
	}
	if h.rooms != nil {
		checks["active_rooms"] = strconv.Itoa(h.rooms.RoomCount())
	}

	status, code := "healthy", http.StatusOK
	if err := h.ledger.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health is the short form for load balancers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.ledger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "ledger unavailable",
		})
		return
	}

	resp := gin.H{"status": "ok", "version": h.version}
	if h.rooms != nil {
		resp["active_rooms"] = h.rooms.RoomCount()
	}
	c.JSON(http.StatusOK, resp)
}
