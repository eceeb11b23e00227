package http

import (
	"time"

	"affection_pvp/internal/http/handlers"
	"affection_pvp/internal/http/middleware"
	"affection_pvp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the routes need. The stores are interfaces so the
// server can run in tests without Postgres.
type Deps struct {
	Hub           *ws.Hub
	DB            handlers.Pinger
	History       handlers.HistoryStore
	Sessions      handlers.SessionStore
	Version       string
	AllowedOrigin string

	WSRateLimit   int
	WSRateWindow  time.Duration
	APIRateLimit  int
	APIRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Hub, d.History, d.Sessions, d.AllowedOrigin)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Hub, d.Version)

	wsLimit, wsWindow := orDefault(d.WSRateLimit, 30), orDefaultDuration(d.WSRateWindow, time.Minute)
	apiLimit, apiWindow := orDefault(d.APIRateLimit, 60), orDefaultDuration(d.APIRateWindow, time.Minute)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// PvP websocket, limited per session so reconnect storms stay bounded
	r.GET("/ws/pvp/match/:sessionId",
		middleware.RateLimit(wsLimit, wsWindow, middleware.ByParam("sessionId")),
		h.WS,
	)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(apiLimit, apiWindow, middleware.ByIP))
	v1.GET("/pvp/history/:sessionId", h.History)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
