package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservation_app/internal/api"
	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/notify"
	"reservation_app/internal/app/service"
	"reservation_app/internal/app/worker"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"
	"reservation_app/internal/platform/config"
	"reservation_app/internal/platform/database"
	"reservation_app/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	log.Println("Configuration loaded.")

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// 2. Initialize stores
	var (
		userRepo      repository.UserRepository
		slotRepo      repository.SlotRepository
		codes         repository.CodeStore
		notifications notify.Queue
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := repository.NewMemoryStore()
		userRepo, slotRepo = store.Users(), store.Slots()
		memCodes := repository.NewMemoryCodeStore()
		go memCodes.RunSweeper(bgCtx, time.Minute)
		codes = memCodes
		notifications = notify.NewMemoryQueue()
		log.Println("WARN: Using the in-memory store, data is lost on restart.")
	case config.StoreDriverPostgres:
		database.Connect()
		defer database.Close()
		queue.ConnectRedis()
		defer queue.CloseRedis()

		userRepo = repository.NewPgUserRepository(database.DB)
		slotRepo = repository.NewPgSlotRepository(database.DB)
		codes = repository.NewRedisCodeStore(queue.RDB, cfg.VerificationKeyPrefix)
		notifications = notify.NewRedisQueue(queue.RDB, cfg.NotificationQueueKey)
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.BootstrapAdmin != "" {
		promoteAdmin(bgCtx, userRepo, cfg.BootstrapAdmin)
	}

	// 3. Initialize Services
	tokens := security.NewTokenService(cfg.JWTKey)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)

	slotService := service.NewSlotService(slotRepo, userRepo, notifications, cfg.ReminderLead)
	services := api.Services{
		Auth:    service.NewAuthService(userRepo, hasher, tokens, codes, notifications, cfg.VerificationCodeTTL),
		Users:   service.NewUserService(userRepo, hasher),
		Slots:   slotService,
		Doctors: service.NewDoctorService(userRepo, slotService),
	}

	// 4. Initialize Notification Worker (as a goroutine)
	notificationWorker := worker.NewNotificationWorker(notifications, notify.LogMailer{}, slotService, cfg.NotificationPollEvery, cfg.NotificationMaxAttempts)
	go notificationWorker.Start(bgCtx)

	// 5. Initialize Router & HTTP Server
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	go limiter.RunSweeper(bgCtx)
	router := api.NewRouter(services, tokens, limiter)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop

	log.Println("Shutting down server...")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server shutdown failed: %v", err)
		return
	}
	log.Println("Server and worker stopped gracefully.")
}

// promoteAdmin gives the admin role to an existing account so a fresh
// deployment has someone able to manage roles.
func promoteAdmin(ctx context.Context, users repository.UserRepository, username string) {
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		log.Printf("WARN: Bootstrap admin %q not promoted: %v", username, err)
		return
	}
	if user.Role == model.RoleAdmin {
		return
	}
	if _, err := users.SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
		log.Printf("ERROR: Failed to promote %q to admin: %v", username, err)
		return
	}
	log.Printf("INFO: Promoted %q to admin", username)
}
