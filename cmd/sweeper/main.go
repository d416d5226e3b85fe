package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"caseflow/analysis"
	"caseflow/audit"
	"caseflow/casefile"
	"caseflow/chase"
	"caseflow/config"
	"caseflow/db"
	"caseflow/deadline"
	"caseflow/delivery"
	"caseflow/lender"
	"caseflow/logging"
	"caseflow/mailer"
	"caseflow/settings"
)

// The sweeper runs the three background loops on one interval: deadline
// urgency reclassification, scheduled report dispatch and decision chasing.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	runner := analysis.NewRunner(caseRepo, caseSvc, lender.NewRepository(pool), logger)
	caseSvc.WithDeriver(runner)

	chaser := chase.NewScheduler(caseRepo, caseSvc, messenger, settings.NewRepository(pool), logger)
	deliverySvc := delivery.NewService(caseRepo, caseSvc, messenger, logger)
	urgencySweep := deadline.NewSweep(caseRepo, logger)

	logger.Info("sweeper running", zap.Duration("interval", cfg.SweepInterval))

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		runSweeps(ctx, logger, urgencySweep, deliverySvc, chaser)
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}

// runSweeps executes one pass of each loop. The loops touch disjoint sets
// of cases, so they run concurrently.
func runSweeps(ctx context.Context, logger *zap.Logger, urgency *deadline.Sweep, deliverySvc *delivery.Service, chaser *chase.Scheduler) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := urgency.Run(gctx)
		return err
	})
	g.Go(func() error {
		_, err := deliverySvc.DispatchDue(gctx)
		return err
	})
	g.Go(func() error {
		_, err := chaser.Run(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("sweep pass failed", zap.Error(err))
	}
}
