package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/echowallet/backend/docs"
	"github.com/echowallet/backend/internal/database"
	"github.com/echowallet/backend/internal/handlers"
	"github.com/echowallet/backend/internal/ledger"
	mW "github.com/echowallet/backend/internal/middleware"
	"github.com/echowallet/backend/internal/notify"
	"github.com/echowallet/backend/internal/services"
)

// @title EchoWallet API
// @version 1.0
// @description Personal finance wallet: transfers, group expense splitting, spending insights
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "EchoWallet API"
	docs.SwaggerInfo.Description = "Personal finance wallet: transfers, group expense splitting, spending insights"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Ledger engine and its collaborators
	pinVerifier := ledger.NewPINVerifier(db)
	userDirectory := ledger.NewSQLUserDirectory(db)
	notifier := notify.NewWalletNotifier(db, redisClient)
	engine := ledger.NewEngine(db, pinVerifier, userDirectory, notifier)

	authService := services.NewAuthService(db, redisClient)
	accountService := services.NewAccountService(db, engine)
	transactionService := services.NewTransactionService(db, engine)
	groupService := services.NewGroupService(db, engine, pinVerifier)
	detailService := services.NewDetailService(db)
	qrService := services.NewQRService(db, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for user avatars
	r.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/",
		mW.StaticFileServer("./static/avatars")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/user/register", authService.Register)
		r.Post("/user/login", authService.Login)
		r.Post("/user/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/user/profile", authService.GetProfile)
			r.Post("/user/reset-pin", authService.ResetPIN)
			r.Post("/user/reset-password", authService.ResetPassword)
			r.Get("/user/search", accountService.SearchUsers)

			r.Post("/account/add-balance", accountService.AddBalance)
			r.Get("/account/balance", accountService.GetBalance)

			r.Post("/transaction/transfer", transactionService.Transfer)
			r.Get("/transaction", transactionService.ListTransactions)
			r.Get("/transaction/recent", transactionService.GetRecentTransactions)

			r.Post("/group", groupService.CreateGroup)
			r.Get("/group", groupService.ListGroups)
			r.Get("/group/{id}", groupService.GetGroup)
			r.Delete("/group/{id}", groupService.DeleteGroup)
			r.Post("/group/member", groupService.AddMember)
			r.Post("/group/expense", groupService.AddExpense)
			r.Delete("/group/expense/{id}", groupService.DeleteExpense)

			r.Get("/detail/friends", detailService.GetFriends)
			r.Post("/detail/friends", detailService.AddFriend)
			r.Get("/detail/notifications", detailService.GetNotifications)
			r.Get("/detail/dashboard", detailService.Dashboard)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
