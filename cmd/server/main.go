package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/database"
	"bookstore/internal/domain"
	"bookstore/internal/handler"
	"bookstore/internal/infrastructure/payment"
	"bookstore/internal/mail"
	"bookstore/internal/repo"
	"bookstore/internal/service"
	"bookstore/internal/worker"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	// repos
	bookRepo := repo.NewBookRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	notificationRepo := repo.NewNotificationRepo(db)

	// provider adapters
	registry := payment.NewRegistry()
	registry.Register(domain.ProviderPaystack, payment.NewPaystack(cfg.Paystack, log))
	registry.Register(domain.ProviderFlutterwave, payment.NewFlutterwave(cfg.Flutterwave, cfg.FrontendURL, log))

	// async queue
	queue := worker.NewQueue(4, log)
	queue.Start(ctx)
	defer queue.Stop()

	// services
	var mailer mail.Sender
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTP(cfg.SMTP)
	} else {
		mailer = &mail.LogSender{Log: log}
	}
	notifier := service.NewNotificationService(notificationRepo, mailer, queue, cfg.NotificationRetention, log)
	orderSvc := service.NewOrderService(db, orderRepo, bookRepo, notifier, log)
	paymentSvc := service.NewPaymentService(db, paymentRepo, orderRepo, registry, notifier, queue, cfg.StaleAfter, log)

	// background sweep
	sweeper := worker.NewReconciliationWorker(paymentSvc, notifier, cfg.SweepInterval, log)
	go sweeper.Run(ctx)

	router := handler.NewRouter(handler.Handlers{
		Orders:        handler.NewOrderHandler(orderSvc, log),
		Payments:      handler.NewPaymentHandler(paymentSvc, log),
		Webhooks:      handler.NewWebhookHandler(paymentSvc, cfg.Paystack.WebhookSecret, cfg.Flutterwave.WebhookSecret, log),
		Notifications: handler.NewNotificationHandler(notifier, log),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
