package config

import (
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Provider struct {
	SecretKey     string
	PublicKey     string
	BaseURL       string
	WebhookSecret string
}

type SMTP struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

type App struct {
	Port        string
	DatabaseURL string
	FrontendURL string

	Paystack    Provider
	Flutterwave Provider

	SMTP SMTP

	// SweepInterval is how often the reconciliation worker runs;
	// StaleAfter is how old a pending transaction must be before re-verification.
	SweepInterval time.Duration
	StaleAfter    time.Duration

	// NotificationRetention is how long read notifications are kept.
	NotificationRetention time.Duration
}

func Load() App {
	return App{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		FrontendURL: getenv("FRONTEND_URL", "http://localhost:3000"),
		Paystack: Provider{
			SecretKey:     os.Getenv("PAYSTACK_SECRET_KEY"),
			PublicKey:     os.Getenv("PAYSTACK_PUBLIC_KEY"),
			BaseURL:       getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			WebhookSecret: os.Getenv("PAYSTACK_SECRET_KEY"),
		},
		Flutterwave: Provider{
			SecretKey:     os.Getenv("FLUTTERWAVE_SECRET_KEY"),
			PublicKey:     os.Getenv("FLUTTERWAVE_PUBLIC_KEY"),
			BaseURL:       getenv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3"),
			WebhookSecret: os.Getenv("FLUTTERWAVE_WEBHOOK_SECRET"),
		},
		SMTP: SMTP{
			Host: os.Getenv("SMTP_HOST"),
			Port: getenv("SMTP_PORT", "587"),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: getenv("SMTP_FROM", "noreply@bookstore.local"),
		},
		SweepInterval:         getdur("SWEEP_INTERVAL", 10*time.Minute),
		StaleAfter:            getdur("PAYMENT_STALE_AFTER", time.Hour),
		NotificationRetention: getdur("NOTIFICATION_RETENTION", 30*24*time.Hour),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in env, using default", "key", k, "value", v)
		return def
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}
