package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/config"
	"programhub/internal/mailer"
	"programhub/internal/program"
	"programhub/internal/queue"
	"programhub/internal/reporting"
	"programhub/internal/store"
)

// Worker delivers queued emails and completes programs past their end date.
func main() {
	cfg := config.Load()
	rep := reporting.New(cfg.RollbarToken, cfg.Env)
	defer rep.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("redis config invalid: %v", err)
	}
	defer redisClient.Close()

	auditor := audit.NewLogger(audit.NewRepository(db.Client), rep)
	// Completion never counts attendance or signs codes.
	counter := attendance.NewService(attendance.NewRepository(db.Client), nil, auditor)
	programs := program.NewService(program.NewRepository(db.Client), counter, auditor)

	c := cron.New()
	_, err = c.AddFunc(cfg.CompletionSchedule, func() {
		n, err := programs.CompleteEnded(ctx)
		if err != nil {
			rep.Error("program completion failed", err)
			return
		}
		if n > 0 {
			log.Printf("completed %d program(s)", n)
		}
	})
	if err != nil {
		log.Fatalf("invalid COMPLETION_SCHEDULE %q: %v", cfg.CompletionSchedule, err)
	}
	c.Start()
	log.Printf("completion job scheduled (%s)", cfg.CompletionSchedule)

	if cfg.QueueBackend == "memory" {
		log.Println("memory queue backend: emails are delivered by the api process")
		<-ctx.Done()
	} else {
		var sender mailer.Sender
		if cfg.SendgridAPIKey == "" {
			rep.Warn("SENDGRID_API_KEY not set, emails will be logged")
			sender = mailer.NewLogSender(log.Default())
		} else {
			sender = mailer.NewSendgridSender(cfg.SendgridAPIKey, cfg.MailFrom, cfg.MailFromName)
		}
		q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

		log.Println("worker started, waiting for messages...")
		if err := mailer.NewWorker(sender, rep).Run(ctx, q); err != nil {
			log.Printf("queue consume init failed: %v", err)
		}
	}

	<-c.Stop().Done()
	log.Println("worker stopped")
}
