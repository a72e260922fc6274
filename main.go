package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"google.golang.org/api/option"

	"coveyTownAPI/handlers"
	"coveyTownAPI/internal/config"
	"coveyTownAPI/internal/db"
	"coveyTownAPI/internal/identity"
	"coveyTownAPI/internal/notification"
	"coveyTownAPI/middleware"
	"coveyTownAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbPool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()
	log.Println("Successfully connected to PostgreSQL")

	if cfg.ApplySchema {
		if err := db.ApplySchema(ctx, dbPool); err != nil {
			log.Fatal(err)
		}
		log.Println("Database schema applied")
	}

	firebaseApp, err := newFirebaseApp(ctx, cfg)
	if err != nil {
		log.Printf("Warning: Could not initialize Firebase Admin: %v", err)
	}

	var adminAuth *auth.Client
	if firebaseApp != nil {
		adminAuth, err = firebaseApp.Auth(ctx)
		if err != nil {
			log.Printf("Warning: Could not initialize Firebase Auth client: %v", err)
		}
	}

	verifier, err := newTokenVerifier(cfg, adminAuth)
	if err != nil {
		log.Fatal(err)
	}

	identityProvider, err := newIdentityProvider(ctx, cfg, adminAuth)
	if err != nil {
		log.Fatal(err)
	}

	middleware.InitPrometheus()
	services.RegisterMetrics()

	towns := services.NewTownsStore()
	notificationService := services.NewNotificationService(dbPool)
	userService := services.NewUserService(dbPool, towns)
	friendService := services.NewFriendService(dbPool, notificationService)

	var pushProvider services.PushNotificationProvider = services.LogPushProvider{}
	if firebaseApp != nil {
		fcmService, err := notification.NewFCMService(ctx, firebaseApp)
		if err != nil {
			log.Printf("Warning: Could not initialize FCM: %v", err)
		} else {
			pushProvider = fcmService
			log.Println("FCM Push Provider initialized successfully")
		}
	}

	dispatcher := services.NewNotificationDispatcher(notificationService, pushProvider, cfg.NotificationWorkers, cfg.NotificationQueueSize)
	defer dispatcher.Stop()
	notificationService.SetDispatcher(dispatcher)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.CleanupVisitors(ctx)

	r := handlers.NewRouter(handlers.RouterDeps{
		DB:            dbPool,
		Friends:       handlers.NewFriendHandler(friendService),
		Users:         handlers.NewUserHandler(userService),
		Towns:         handlers.NewTownHandler(towns),
		Auth:          handlers.NewAuthHandler(identity.NewClient(identityProvider), userService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Verifier:      verifier,
		RateLimiter:   rateLimiter,
		MetricsUser:   cfg.MetricsUser,
		MetricsPass:   cfg.MetricsPass,
	})

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.SessionTokenHeader}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Got interrupt signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// newFirebaseApp prefers base64 credentials from FCM_SERVICE_ACCOUNT_JSON and falls back to
// the local service account file.
func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	var opt option.ClientOption

	if cfg.FirebaseCredentialsJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FCM_SERVICE_ACCOUNT_JSON: %v", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firebase: Initializing from FCM_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if _, err := os.Stat(cfg.FirebaseCredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FCM_SERVICE_ACCOUNT_JSON environment variable is not set", cfg.FirebaseCredentialsFile)
		}
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsFile)
		log.Printf("Firebase: Initializing from local file: %s.", cfg.FirebaseCredentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}
	return app, nil
}

func newTokenVerifier(cfg *config.Config, adminAuth *auth.Client) (middleware.TokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderClerk:
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
		return middleware.ClerkVerifier{}, nil
	case config.AuthProviderHMAC:
		log.Println("Using HMAC session tokens")
		return middleware.NewHMACVerifier(cfg.SessionSigningKey), nil
	default:
		if adminAuth == nil {
			return nil, fmt.Errorf("AUTH_PROVIDER=%s needs Firebase Admin credentials", cfg.AuthProvider)
		}
		return middleware.NewFirebaseVerifier(adminAuth), nil
	}
}

// newIdentityProvider uses Firebase Auth when a web API key is configured. Otherwise
// accounts live in memory, signed with the HMAC key when one is set.
func newIdentityProvider(ctx context.Context, cfg *config.Config, adminAuth *auth.Client) (identity.Provider, error) {
	if cfg.FirebaseAPIKey != "" {
		provider, err := identity.NewFirebaseProvider(ctx, cfg.FirebaseAPIKey, adminAuth)
		if err != nil {
			return nil, err
		}
		log.Println("Identity: using Firebase Auth")
		return provider, nil
	}

	log.Println("Identity: FIREBASE_API_KEY not set, using in-memory accounts")
	provider := identity.NewMemoryProvider()
	if cfg.SessionSigningKey != "" {
		provider.SignToken = middleware.NewHMACVerifier(cfg.SessionSigningKey).Sign
	}
	return provider, nil
}
