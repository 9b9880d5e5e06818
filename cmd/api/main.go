package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/config"
	"github.com/bankcards/card-service/internal/email"
	"github.com/bankcards/card-service/internal/handler"
	"github.com/bankcards/card-service/internal/jobs"
	"github.com/bankcards/card-service/internal/middleware"
	"github.com/bankcards/card-service/internal/repository"
	"github.com/bankcards/card-service/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Card number codec with the injected key
	codec, err := cardnum.NewCodec(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize card number codec: %v", err)
	}

	// Initialize layers
	userRepo := repository.NewUserRepository(db, logger)
	cardRepo := repository.NewCardRepository(db, logger)
	mailer := email.NewSender(cfg, logger)
	cardSvc := service.NewCardService(cardRepo, userRepo, codec, mailer, logger)
	userSvc := service.NewUserService(userRepo, logger)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, logger)
	h := handler.NewHandler(cardSvc, userSvc, authSvc, logger)

	// Expiry reminder job
	reminder := jobs.NewExpiryReminder(cardRepo, codec, mailer, logger)
	if err := reminder.Start(cfg.ExpiryReminderCron); err != nil {
		logger.Fatalf("Failed to start expiry reminder: %v", err)
	}
	defer reminder.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))

	// Public routes
	r.HandleFunc("/login", h.Login).Methods("POST")

	// Admin routes
	adminRouter := r.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireAdmin)
	adminRouter.HandleFunc("/cards", h.ListAllCards).Methods("GET")
	adminRouter.HandleFunc("/cards", h.CreateCard).Methods("POST")
	adminRouter.HandleFunc("/cards/{id}/block", h.BlockCard).Methods("PATCH")
	adminRouter.HandleFunc("/cards/{id}/activate", h.ActivateCard).Methods("PATCH")
	adminRouter.HandleFunc("/cards/{id}", h.DeleteCard).Methods("DELETE")
	adminRouter.HandleFunc("/users", h.ListUsers).Methods("GET")
	adminRouter.HandleFunc("/users", h.CreateUser).Methods("POST")
	adminRouter.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	adminRouter.HandleFunc("/users/{id}", h.UpdateUser).Methods("PATCH")
	adminRouter.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")

	// User routes
	userRouter := r.PathPrefix("/api/users/{userId}").Subrouter()
	userRouter.Use(middleware.Auth(cfg.JWTSecret))
	userRouter.HandleFunc("/cards", h.ListUserCards).Methods("GET")
	userRouter.HandleFunc("/cards/transfer", h.Transfer).Methods("POST")
	userRouter.HandleFunc("/cards/{id}/block", h.RequestBlock).Methods("PATCH")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
