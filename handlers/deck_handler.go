package handlers

import (
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

type DeckHandler struct {
	deckService *services.DeckService
}

func NewDeckHandler(deckService *services.DeckService) *DeckHandler {
	return &DeckHandler{deckService: deckService}
}

// UploadDeck accepts a multipart CSV upload, validates it, and persists it.
// The response keeps the {status, data} / {status, message} result shape
// the web client expects, for both outcomes.
func (h *DeckHandler) UploadDeck(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing deck file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "could not read deck file"})
		return
	}
	defer file.Close()

	questions, err := services.ParseDeck(file)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	name := strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
	deck, err := h.deckService.SaveDeck(name, questions)
	if err != nil {
		log.Printf("Failed to save deck %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to save deck"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"deck_id": deck.ID,
		"data":    deck.Questions,
	})
}

func (h *DeckHandler) GetDecks(c *gin.Context) {
	decks, err := h.deckService.GetDecks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list decks"})
		return
	}
	c.JSON(http.StatusOK, decks)
}

func (h *DeckHandler) GetDeckByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deck id"})
		return
	}

	deck, err := h.deckService.GetDeckByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deck not found"})
		return
	}
	c.JSON(http.StatusOK, deck)
}
