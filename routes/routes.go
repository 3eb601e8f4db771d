package routes

import (
	"log"
	"net/http"

	"bluffquiz/handlers"
	"bluffquiz/middleware"
	"bluffquiz/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	deckHandler *handlers.DeckHandler,
	sessionHandler *handlers.SessionHandler,
	hub *services.Hub,
	sessionService *services.SessionService,
	authService *services.AuthService,
	assetsDir string,
) {
	// Liveness probe kept from the original API
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Backend API is active"})
	})

	// Host login is the only public host endpoint
	router.POST("/host/login", authHandler.Login)

	// Public player routes. Players poll session-status to watch the
	// roster and notice cancellation, so it stays outside the host gate.
	router.POST("/join-session", sessionHandler.JoinSession)
	router.GET("/session-status/:code", sessionHandler.SessionStatus)

	// Host-only routes
	host := router.Group("/")
	host.Use(middleware.HostAuth(authService))
	{
		host.GET("/host/verify", authHandler.Verify)

		host.POST("/upload-deck", deckHandler.UploadDeck)
		host.GET("/decks", deckHandler.GetDecks)
		host.GET("/decks/:id", deckHandler.GetDeckByID)

		host.POST("/create-session", sessionHandler.CreateSession)
		host.DELETE("/session/:code", sessionHandler.CancelSession)
		host.GET("/session/:code/summary", sessionHandler.GetSummary)
	}

	// WebSocket endpoint for the realtime game channel. Unknown rooms are
	// refused before the upgrade so the client gets a clean 404.
	router.GET("/ws/session/:code", func(c *gin.Context) {
		code := c.Param("code")
		if !sessionService.RoomExists(code) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for room %s: %v", code, err)
			return
		}

		hub.RegisterClient(conn, code)
	})

	// Question images referenced by deck CSVs
	router.Static("/assets", assetsDir)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
