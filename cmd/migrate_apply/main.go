package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"affection_pvp/internal/config"
	"affection_pvp/internal/db"
	"affection_pvp/internal/logger"
)

func main() {
	apply := flag.Bool("apply", false, "apply migrations")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		logger.Fatal("list migrations", "dir", *dir, "error", err)
	}
	sort.Strings(files)

	if !*apply {
		for _, f := range files {
			fmt.Println(filepath.Base(f))
		}
		return
	}

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			logger.Fatal("read migration", "file", f, "error", err)
		}
		if _, err := pool.Exec(context.Background(), string(b)); err != nil {
			logger.Fatal("apply migration", "file", f, "error", err)
		}
		logger.Info("applied migration", "file", filepath.Base(f))
	}
}
