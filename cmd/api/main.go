package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/config"
	"github.com/opsboard/opsboard/pkg/db"
	natstransport "github.com/opsboard/opsboard/pkg/transport/nats"
	"github.com/opsboard/opsboard/services/api"
	"github.com/opsboard/opsboard/services/api/auth"
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

	bus, err := natstransport.NewNatsBus(cfg.NATSURL)
	if err != nil {
		log.Fatal("nats connect failed", zap.Error(err))
	}
	defer bus.Close()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.CookieSecure)

	router := api.NewRouter(database, tokens, bus, log)

	log.Info("api server starting", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, router); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
