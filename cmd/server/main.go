package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/admin"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/alert"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/config"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/database"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/generator"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/guard"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/httpapi"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/storage"
	"github.com/syecodesoftware-del/mystic-brew-fortune/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	var inflight guard.Guard = guard.NewMemory(cfg.GuardTTL)
	if cfg.RedisAddr != "" {
		client, err := guard.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		inflight = guard.NewRedis(client, cfg.GuardTTL, logr)
	}

	alerts, err := alert.NewTelegram(logr, cfg.AlertTelegramToken, cfg.AlertTelegramChatID)
	if err != nil {
		log.Fatalf("alerts: %v", err)
	}

	var photos service.PhotoStore
	if cfg.S3Enabled() {
		uploader, err := storage.NewUploader(cfg)
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		photos = uploader
	}

	bonusZone, err := time.LoadLocation(cfg.DailyBonusTimezone)
	if err != nil {
		log.Fatalf("bonus timezone: %v", err)
	}

	tellerService, err := service.LoadTellers(cfg.TellersFile)
	if err != nil {
		log.Fatalf("tellers: %v", err)
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	gen := generator.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	fortuneRepo := repository.NewFortuneRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	notificationService := service.NewNotificationService(logr, userRepo, notificationRepo)
	ledgerService := service.NewLedgerService(logr, ledgerRepo, userRepo, fortuneRepo, notificationService, inflight, alerts, cfg.GenerationTimeout)
	userService := service.NewUserService(logr, userRepo, ledgerRepo, notificationService, tokens, cfg.SignupCoins)
	fortuneService := service.NewFortuneService(logr, userRepo, fortuneRepo, tellerService, ledgerService, gen, photos, cfg.MaxUploadBytes)
	bonusService := service.NewBonusService(logr, userRepo, ledgerRepo, notificationService, cfg.DailyBonusCoins, bonusZone)
	adminService := service.NewAdminService(logr, adminRepo, userRepo, fortuneRepo, ledgerRepo, notificationService, tokens, bonusZone)

	if err := adminService.EnsureDefaultAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("ensure default admin: %v", err)
	}

	adminServer := admin.NewServer(cfg.AdminListenAddr, logr, tokens, adminService)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	apiServer := httpapi.NewServer(httpapi.Options{
		Addr:           cfg.HTTPListenAddr,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		WriteTimeout:   cfg.GenerationTimeout + 30*time.Second,
	}, logr, tokens, httpapi.Services{
		Users:         userService,
		Fortunes:      fortuneService,
		Tellers:       tellerService,
		Bonus:         bonusService,
		Notifications: notificationService,
	})
	if err := apiServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("api server stopped", "err", err)
	}
}
