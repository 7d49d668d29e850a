package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"jobhub/internal/adapter/api"
	"jobhub/internal/adapter/api/handler"
	apimiddleware "jobhub/internal/adapter/api/middleware"
	"jobhub/internal/adapter/api/router"
	"jobhub/internal/adapter/repository"
	domainrepo "jobhub/internal/domain/repository"
	"jobhub/internal/infrastructure/firebase"
	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/internal/infrastructure/token"
	"jobhub/internal/infrastructure/websocket"
	"jobhub/internal/usecase"
	"jobhub/pkg/config"
	"jobhub/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var firebaseApp *fbapp.App
	if cfg.MessageLogBackend == config.BackendFirestore || cfg.AuthMode == config.AuthFirebase {
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, firebaseCredentials(cfg))
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	messageLog, profiles, cleanup := openBackend(ctx, cfg)
	defer cleanup()

	verifier, issuer, closeVerifier := openVerifier(ctx, cfg, firebaseApp)
	defer closeVerifier()

	rateLimiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(cfg.SendRatePerMinute, cfg.SendBurst),
	})
	rateLimiter.StartCleanupRoutine(ctx)

	messagingUseCase := usecase.NewMessagingUseCase(messageLog, profiles, cfg.ProfileLookupConcurrency)

	wsManager := websocket.NewManager(messagingUseCase, rateLimiter)
	wsManager.Start(ctx)

	handler.Setup(messagingUseCase, cfg.MessageLogBackend)
	if issuer != nil {
		handler.SetupDevTokenHandler(issuer)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = response.HTTPErrorHandler

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware, cfg.IsDevelopment())

	router.Setup(e, authMiddleware, rateLimiter, wsHandler)
	router.SetupDevRouter(e, cfg.Environment)

	go func() {
		log.Printf("Starting server on port %s (backend=%s, auth=%s)...", cfg.ServerPort, cfg.MessageLogBackend, cfg.AuthMode)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down cleanly: %v", err)
	}
}

func firebaseCredentials(cfg *config.Config) option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	}

	if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		return option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
	}

	log.Printf("Using application default credentials for Firebase")
	return option.WithTelemetryDisabled()
}

func openBackend(ctx context.Context, cfg *config.Config) (domainrepo.MessageLog, domainrepo.ProfileDirectory, func()) {
	switch cfg.MessageLogBackend {
	case config.BackendFirestore:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, firebaseCredentials(cfg))
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		return repository.NewFirestoreMessageLog(firestoreClient),
			repository.NewFirestoreProfileDirectory(firestoreClient),
			func() { firestoreClient.Close() }

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Failed to reach database: %v", err)
		}

		listener, err := repository.NewPostgresListener(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to listen for message inserts: %v", err)
		}

		hub := repository.NewNotificationHub()
		go hub.Run(ctx, listener.Notify)

		messageLog := repository.NewPostgresMessageLog(db, hub)
		if err := messageLog.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		return messageLog, repository.NewPostgresProfileDirectory(db), func() {
			listener.Close()
			db.Close()
		}

	default:
		messageLog := repository.NewMemoryMessageLog()
		profiles := repository.NewMemoryProfileDirectory()
		if cfg.IsDevelopment() {
			seedDevelopmentData(messageLog, profiles)
		}
		return messageLog, profiles, func() {}
	}
}

func openVerifier(ctx context.Context, cfg *config.Config, firebaseApp *fbapp.App) (usecase.TokenVerifier, usecase.TokenIssuer, func()) {
	switch cfg.AuthMode {
	case config.AuthFirebase:
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		return firebase.NewFirebaseAuthClient(authClient), nil, func() {}

	case config.AuthJWKS:
		verifier, err := token.NewJWKSVerifier(cfg.JWKSURL)
		if err != nil {
			log.Fatalf("Failed to load JWKS from %s: %v", cfg.JWKSURL, err)
		}
		return verifier, nil, verifier.Close

	default:
		service := token.NewHMACService(cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)
		return service, service, func() {}
	}
}
