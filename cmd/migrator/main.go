package main

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/config"
	"github.com/opsboard/opsboard/pkg/db"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer database.Close()

	files, err := os.ReadDir("db/migrations")
	if err != nil {
		log.Fatal("read migrations dir failed", zap.Error(err))
	}

	var ups []string
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".up.sql") {
			ups = append(ups, "db/migrations/"+f.Name())
		}
	}
	sort.Strings(ups)

	for _, f := range ups {
		log.Info("applying migration", zap.String("file", f))
		content, err := os.ReadFile(f)
		if err != nil {
			log.Fatal("read migration failed", zap.String("file", f), zap.Error(err))
		}

		if _, err := database.Exec(string(content)); err != nil {
			log.Fatal("apply migration failed", zap.String("file", f), zap.Error(err))
		}
	}
	log.Info("migration complete")
}
