package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"case-gateway/internal/common/cache"
	httpclient "case-gateway/internal/common/http"
	"case-gateway/internal/common/logging"
	"case-gateway/internal/config"
	"case-gateway/internal/crm"
	"case-gateway/internal/handlers"
	"case-gateway/internal/middleware"
	"case-gateway/internal/token"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	logger := logging.GetGlobalLogger()
	defer logging.MustSync()

	// Durable token storage prefers Redis; without it, tokens survive only
	// as long as the process.
	var durable token.Backend
	if cfg.RedisAddress != "" {
		db, _ := strconv.Atoi(cfg.RedisDB)
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, falling back to in-memory token storage",
				logging.Field{Key: "address", Value: cfg.RedisAddress},
				logging.Field{Key: "error", Value: err.Error()})
			durable = token.NewSessionBackend()
		} else {
			defer redisClient.Close()
			durable = token.NewRedisBackend(redisClient)
		}
	} else {
		durable = token.NewSessionBackend()
	}

	store := token.NewDualStore(token.NewSessionBackend(), durable, "service", logger)

	httpClient := httpclient.NewHTTPClientWithTimeout(cfg.HTTPTimeout)

	tokens := token.NewService(store, token.Config{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		TokenEndpoint: cfg.TokenEndpoint,
		Scope:         cfg.Scope,
	}, httpClient, logger)

	scheduler := token.NewScheduler(tokens, cfg.EnableAutoRenewal, cfg.RenewalThreshold, logger)

	// Without a stored credential, bootstrap one via client credentials.
	if tokens.AccessToken(context.Background()) == "" {
		tokens.Acquire(context.Background())
	}

	responseCache := crm.NewResponseCache(
		cache.NewLocalCache(crm.DefaultCacheTTL, 10*time.Minute),
		crm.DefaultCacheTTL, logger)

	transformer := crm.NewTransformer("Cases", "case_number", nil, nil)

	gateway := crm.NewGateway(crm.Config{
		ListEndpoint:    cfg.ListEndpoint,
		PushEndpoint:    cfg.PushEndpoint,
		StaticParams:    cfg.QueryParams,
		SubscriptionKey: cfg.SubscriptionKey,
	}, tokens, responseCache, transformer, httpClient, nil, logger)

	h := handlers.New(gateway, tokens, nil, logger)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.TokenRenewalMiddleware(scheduler))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cases", h.ListCases).Methods("GET")
	api.HandleFunc("/cases", h.CreateCase).Methods("POST")
	api.HandleFunc("/cases/table", h.GetCasesTable).Methods("GET")
	api.HandleFunc("/cases/{id}", h.GetCase).Methods("GET")
	api.HandleFunc("/cases/{id}", h.UpdateCase).Methods("PATCH")
	api.HandleFunc("/cases/{id}", h.DeleteCase).Methods("DELETE")

	api.HandleFunc("/token/status", h.GetTokenStatus).Methods("GET")
	api.HandleFunc("/token/renew", h.RenewToken).Methods("POST")
	api.HandleFunc("/logout", h.Logout).Methods("POST")

	router.HandleFunc("/health", h.Health).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Server starting on port %s...\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	fmt.Println("Server exited")
}
