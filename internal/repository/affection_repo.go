package repository

import (
	"context"
	"errors"
	"fmt"

	"affection_pvp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSessionNotFound = errors.New("game session not found")

// AffectionRepository is the ledger of affection balances.
type AffectionRepository struct {
	db *pgxpool.Pool
}

func NewAffectionRepository(db *pgxpool.Pool) *AffectionRepository {
	return &AffectionRepository{db: db}
}

// Get returns the session row
func (r *AffectionRepository) Get(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	var s domain.GameSession
	err := r.db.QueryRow(ctx, `
		SELECT id, affection, character_stolen, updated_at
		FROM game_sessions
		WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.Affection, &s.CharacterStolen, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &s, nil
}

// Balance returns the current affection of a session
func (r *AffectionRepository) Balance(ctx context.Context, sessionID string) (int, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return s.Affection, nil
}

// Upsert creates the session or overwrites its balance
func (r *AffectionRepository) Upsert(ctx context.Context, sessionID string, affection int) (*domain.GameSession, error) {
	affection = min(domain.MaxAffection, max(domain.MinAffection, affection))

	var s domain.GameSession
	err := r.db.QueryRow(ctx, `
		INSERT INTO game_sessions (id, affection)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET affection = EXCLUDED.affection, character_stolen = FALSE, updated_at = now()
		RETURNING id, affection, character_stolen, updated_at
	`, sessionID, affection).Scan(&s.ID, &s.Affection, &s.CharacterStolen, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert session %s: %w", sessionID, err)
	}
	return &s, nil
}

// Settle moves the stake between both sessions and writes the history rows in
// one transaction. Both rows are locked in id order so concurrent settlements
// touching the same session cannot deadlock.
func (r *AffectionRepository) Settle(ctx context.Context, s *domain.Settlement) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, affection
		FROM game_sessions
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, []string{s.WinnerSessionID, s.LoserSessionID})
	if err != nil {
		return fmt.Errorf("lock sessions: %w", err)
	}

	balances := make(map[string]int, 2)
	for rows.Next() {
		var id string
		var affection int
		if err := rows.Scan(&id, &affection); err != nil {
			rows.Close()
			return fmt.Errorf("scan session: %w", err)
		}
		balances[id] = affection
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock sessions: %w", err)
	}

	winnerBal, ok := balances[s.WinnerSessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.WinnerSessionID)
	}
	loserBal, ok := balances[s.LoserSessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.LoserSessionID)
	}

	s.Apply(winnerBal, loserBal)

	if _, err := tx.Exec(ctx, `
		UPDATE game_sessions SET affection = $2, updated_at = now() WHERE id = $1
	`, s.WinnerSessionID, s.WinnerBalance); err != nil {
		return fmt.Errorf("update winner: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE game_sessions
		SET affection = $2, character_stolen = character_stolen OR $3, updated_at = now()
		WHERE id = $1
	`, s.LoserSessionID, s.LoserBalance, s.CharacterStolen); err != nil {
		return fmt.Errorf("update loser: %w", err)
	}

	for _, rec := range s.Records() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pvp_matches
				(room_id, game_type, session_id, opponent_session_id, result, bet, final_bet, delta, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, rec.RoomID, rec.GameType, rec.SessionID, rec.OpponentSessionID, rec.Result,
			rec.Bet, rec.FinalBet, rec.Delta, rec.Reason); err != nil {
			return fmt.Errorf("insert match record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}
