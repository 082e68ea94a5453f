package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phone-verify/internal/application/delivery"
	"github.com/phone-verify/internal/application/verification"
	"github.com/phone-verify/internal/config"
	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/infrastructure/dynamo"
	jwtinfra "github.com/phone-verify/internal/infrastructure/jwt"
	"github.com/phone-verify/internal/infrastructure/memory"
	"github.com/phone-verify/internal/infrastructure/metrics"
	"github.com/phone-verify/internal/infrastructure/postgres"
	redisinfra "github.com/phone-verify/internal/infrastructure/redis"
	"github.com/phone-verify/internal/infrastructure/sns"
	"github.com/phone-verify/internal/infrastructure/twilio"
	"github.com/phone-verify/internal/infrastructure/whatsapp"
	"github.com/phone-verify/internal/pkg/phone"
	"github.com/phone-verify/internal/pkg/validate"
	transporthttp "github.com/phone-verify/internal/transport/http"
	"github.com/phone-verify/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	normalizer := phone.NewNormalizer(cfg.Phone.DefaultRegion, cfg.Phone.CountryCode)
	if err := validate.RegisterPhone(normalizer.IsValid); err != nil {
		log.Fatalf("register phone validator: %v", err)
	}

	store, users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	cooldown, closeCooldown := openCooldown(ctx, cfg)
	defer closeCooldown()

	rec := metrics.New(prometheus.DefaultRegisterer)

	// The HTTP client timeout is a ceiling; the router applies the per-channel timeout.
	httpClient := &http.Client{Timeout: 2 * cfg.Delivery.ChannelTimeout}
	wa := whatsapp.NewClient(whatsapp.Config{
		AccessToken:      cfg.Delivery.WhatsAppAccessToken,
		PhoneNumberID:    cfg.Delivery.WhatsAppPhoneNumberID,
		TemplateName:     cfg.Delivery.WhatsAppTemplateName,
		TemplateLanguage: cfg.Delivery.WhatsAppTemplateLanguage,
		BaseURL:          cfg.Delivery.WhatsAppAPIBaseURL,
		APIVersion:       cfg.Delivery.WhatsAppAPIVersion,
	}, httpClient)
	sms, err := openSMS(ctx, cfg, httpClient)
	if err != nil {
		log.Printf("WARN: SMS channel not available: %v", err)
	}

	router := delivery.NewRouter(delivery.ConfigFrom(cfg.Delivery, cfg.Verification.CodeTTL, rec), wa, sms)
	router.CheckStartup(cfg.IsDevelopment())

	svc := verification.NewService(verification.Deps{
		Store:          store,
		Users:          users,
		Router:         router,
		Cooldown:       cooldown,
		Normalizer:     normalizer,
		Metrics:        rec,
		CodeTTL:        cfg.Verification.CodeTTL,
		MaxAttempts:    cfg.Verification.MaxAttempts,
		ResendCooldown: cfg.Verification.ResendCooldown,
		HashCost:       cfg.Verification.HashCost,
	})

	sweeper, err := worker.NewSweeper(cfg.SweepSchedule, svc.SweepExpired)
	if err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	sweeper.Start()

	// JWT provider (optional; session validation and admin role checks need it).
	var tokens *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg.JWTPublicKeyPath); err == nil {
		tokens = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	deps := &transporthttp.Deps{
		Verification: svc,
		Metrics:      promhttp.Handler(),
	}
	if tokens != nil {
		deps.Tokens = tokens
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sweeper.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (domain.VerificationStore, domain.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		// Creates tables and enables TTL if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewVerificationRepo(client, cfg.DynamoTables.PhoneVerifications),
			dynamo.NewUserRepo(client, cfg.DynamoTables.Users),
			func() {}, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return postgres.NewVerificationRepo(pool), postgres.NewUserRepo(pool), pool.Close, nil
	case config.StoreMemory:
		log.Println("WARN: memory store in use; records are lost on restart")
		return memory.NewVerificationStore(), memory.NewUserStore(), func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func openCooldown(ctx context.Context, cfg *config.Config) (domain.Cooldown, func()) {
	if cfg.RedisAddr == "" {
		return memory.NewCooldown(), func() {}
	}
	client, err := redisinfra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("WARN: redis not available, using in-process cooldown: %v", err)
		return memory.NewCooldown(), func() {}
	}
	return redisinfra.NewCooldown(client), func() { _ = client.Close() }
}

func openSMS(ctx context.Context, cfg *config.Config, httpClient *http.Client) (delivery.SMSSender, error) {
	switch cfg.Delivery.SMSProvider {
	case config.SMSProviderSNS:
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.Delivery.SNSRegion)
		if err != nil {
			return nil, err
		}
		return sns.NewSender(awsCfg), nil
	case config.SMSProviderTwilio:
		return twilio.NewClient(twilio.Config{
			AccountID:    cfg.Delivery.SMSAccountID,
			AuthToken:    cfg.Delivery.SMSAuthToken,
			SenderNumber: cfg.Delivery.SMSSenderNumber,
			BaseURL:      cfg.Delivery.SMSAPIBaseURL,
		}, httpClient), nil
	}
	return nil, fmt.Errorf("unknown SMS_PROVIDER %q", cfg.Delivery.SMSProvider)
}
