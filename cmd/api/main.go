package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"caseflow/analysis"
	"caseflow/audit"
	"caseflow/auth"
	"caseflow/casefile"
	"caseflow/chase"
	"caseflow/config"
	"caseflow/db"
	"caseflow/deadline"
	"caseflow/delivery"
	"caseflow/httpapi"
	"caseflow/lender"
	"caseflow/logging"
	"caseflow/mailer"
	"caseflow/settings"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	logger, err := logging.New(cfg.Stage, cfg.LogLevel)
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	var messenger mailer.Messenger
	if cfg.SESSenderEmail != "" {
		messenger, err = mailer.NewSESMailer(ctx, cfg.SESSenderEmail, logger)
		if err != nil {
			logger.Fatal("bootstrap mailer", zap.Error(err))
		}
	} else {
		logger.Warn("no SES sender configured, recording mail in memory")
		messenger = mailer.NewRecorder()
	}

	audits := audit.NewRepository(pool)
	caseRepo := casefile.NewPGRepository(pool)
	caseSvc := casefile.NewService(pool, caseRepo, audits)
	lenderRepo := lender.NewRepository(pool)
	runner := analysis.NewRunner(caseRepo, caseSvc, lenderRepo, logger)
	caseSvc.WithDeriver(runner)

	settingsRepo := settings.NewRepository(pool)
	chaser := chase.NewScheduler(caseRepo, caseSvc, messenger, settingsRepo, logger)
	deliverySvc := delivery.NewService(caseRepo, caseSvc, messenger, logger)
	urgencySweep := deadline.NewSweep(caseRepo, logger)

	server := httpapi.NewServer(httpapi.Deps{
		Auth:     auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		Cases:    caseSvc,
		Reads:    caseRepo,
		Runner:   runner,
		Delivery: deliverySvc,
		Chaser:   chaser,
		Urgency:  urgencySweep,
		Audits:   audits,
		Lenders:  lenderRepo,
		Log:      logger,
	})

	logger.Info("api listening", zap.String("addr", cfg.ListenAddr))
	if err := server.Router().Run(cfg.ListenAddr); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
