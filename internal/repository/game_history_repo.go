package repository

import (
	"context"
	"fmt"

	"affection_pvp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchHistoryRepository struct {
	db *pgxpool.Pool
}

func NewMatchHistoryRepository(db *pgxpool.Pool) *MatchHistoryRepository {
	return &MatchHistoryRepository{db: db}
}

// ListBySession возвращает последние матчи сессии, новые первыми
func (r *MatchHistoryRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.MatchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, room_id, game_type, session_id, opponent_session_id, result,
				bet, final_bet, delta, reason, created_at
		 FROM pvp_matches
		 WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// SessionStats - итог по сессии
type SessionStats struct {
	SessionID string `json:"session_id"`
	Matches   int    `json:"matches"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	NetDelta  int    `json:"net_delta"`
}

func (r *MatchHistoryRepository) Stats(ctx context.Context, sessionID string) (*SessionStats, error) {
	stats := &SessionStats{SessionID: sessionID}

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE result = 'win'),
			COUNT(*) FILTER (WHERE result = 'lose'),
			COALESCE(SUM(delta), 0)
		 FROM pvp_matches
		 WHERE session_id = $1`,
		sessionID,
	).Scan(&stats.Matches, &stats.Wins, &stats.Losses, &stats.NetDelta)
	if err != nil {
		return nil, fmt.Errorf("match stats: %w", err)
	}
	return stats, nil
}

func scanRecords(rows pgx.Rows) ([]*domain.MatchRecord, error) {
	result := []*domain.MatchRecord{}

	for rows.Next() {
		var rec domain.MatchRecord
		if err := rows.Scan(
			&rec.ID, &rec.RoomID, &rec.GameType, &rec.SessionID, &rec.OpponentSessionID,
			&rec.Result, &rec.Bet, &rec.FinalBet, &rec.Delta, &rec.Reason, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}
