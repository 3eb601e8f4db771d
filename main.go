package main

import (
	"log"

	"bluffquiz/config"
	"bluffquiz/handlers"
	"bluffquiz/middleware"
	"bluffquiz/models"
	"bluffquiz/routes"
	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.Deck{},
		&models.DeckQuestion{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService, err := services.NewAuthService(cfg.HostCode, cfg.JWTSecret)
	if err != nil {
		log.Fatal("Failed to initialize host auth:", err)
	}
	deckService := services.NewDeckService(db)
	sessionService := services.NewSessionService()
	summaryService := services.NewSummaryService(sessionService, redisClient)

	// Initialize WebSocket hub
	hub := services.NewHub(sessionService, summaryService)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	deckHandler := handlers.NewDeckHandler(deckService)
	sessionHandler := handlers.NewSessionHandler(sessionService, summaryService, hub)

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, deckHandler, sessionHandler, hub, sessionService, authService, cfg.AssetsDir)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
