package handlers

import (
	"context"

	"affection_pvp/internal/domain"
	"affection_pvp/internal/repository"
	"affection_pvp/internal/ws"

	"github.com/gorilla/websocket"
)

// HistoryStore reads settled matches.
type HistoryStore interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.MatchRecord, error)
	Stats(ctx context.Context, sessionID string) (*repository.SessionStats, error)
}

// SessionStore reads affection balances.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.GameSession, error)
}

type Handler struct {
	Hub      *ws.Hub
	Records  HistoryStore
	Sessions SessionStore
	upgrader *websocket.Upgrader
}

func NewHandler(hub *ws.Hub, history HistoryStore, sessions SessionStore, allowedOrigin string) *Handler {
	return &Handler{
		Hub:      hub,
		Records:  history,
		Sessions: sessions,
		upgrader: ws.NewUpgrader(allowedOrigin),
	}
}
