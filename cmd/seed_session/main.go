// Command seed_session creates or resets a gameplay session's affection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"affection_pvp/internal/config"
	"affection_pvp/internal/db"
	"affection_pvp/internal/domain"
	"affection_pvp/internal/logger"
	"affection_pvp/internal/repository"
)

func main() {
	id := flag.String("id", "", "gameplay session id")
	affection := flag.Int("affection", 50, "affection balance to set")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "usage: seed_session -id <session> [-affection 50]")
		os.Exit(2)
	}
	if *affection < domain.MinAffection || *affection > domain.MaxAffection {
		logger.Fatal("affection out of range", "affection", *affection)
	}

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := repository.NewAffectionRepository(pool).Upsert(ctx, *id, *affection)
	if err != nil {
		logger.Fatal("seed session", "session_id", *id, "error", err)
	}
	fmt.Printf("%s affection=%d stolen=%v\n", s.ID, s.Affection, s.CharacterStolen)
}
