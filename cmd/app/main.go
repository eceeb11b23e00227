package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affection_pvp/internal/config"
	"affection_pvp/internal/db"
	httpServer "affection_pvp/internal/http"
	"affection_pvp/internal/http/middleware"
	"affection_pvp/internal/logger"
	"affection_pvp/internal/protocol"
	"affection_pvp/internal/repository"
	"affection_pvp/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer middleware.CloseRedisRateLimiter()

	ledger := repository.NewAffectionRepository(dbPool)
	history := repository.NewMatchHistoryRepository(dbPool)

	hub := ws.NewHub(ledger, ws.Options{
		MaxBet:         cfg.MaxBet,
		QueueTimeout:   cfg.QueueTimeout,
		MatchMaxTime:   cfg.MatchMaxTime,
		ReportGrace:    cfg.ReportGrace,
		StaleRoomAfter: cfg.StaleRoomAfter,
		SoloDifficulty: protocol.DefaultSoloDifficulty(),
	})
	if err := hub.StartCleanup(cfg.CleanupEvery); err != nil {
		logger.Fatal("failed to start room cleanup", "error", err)
	}

	r := gin.Default()

	// CORS for the browser client on a different domain
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Hub:           hub,
		DB:            dbPool,
		History:       history,
		Sessions:      ledger,
		Version:       version,
		AllowedOrigin: cfg.AllowedOrigin,
		WSRateLimit:   cfg.WSRateLimit,
		WSRateWindow:  cfg.WSRateWindow,
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := hub.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
