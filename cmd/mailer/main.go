package main

import (
	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/config"
	natstransport "github.com/opsboard/opsboard/pkg/transport/nats"
	"github.com/opsboard/opsboard/services/mailer/core"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	bus, err := natstransport.NewNatsBus(cfg.NATSURL)
	if err != nil {
		log.Fatal("nats connect failed", zap.Error(err))
	}
	defer bus.Close()

	sender := &core.SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}

	mailer := core.NewMailer(bus, sender, cfg.BaseURL, log)
	if err := mailer.Start(); err != nil {
		log.Fatal("mailer failed", zap.Error(err))
	}
}
