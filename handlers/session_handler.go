package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService *services.SessionService
	summaryService *services.SummaryService
	hub            *services.Hub
}

func NewSessionHandler(sessionService *services.SessionService, summaryService *services.SummaryService, hub *services.Hub) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		summaryService: summaryService,
		hub:            hub,
	}
}

type CreateSessionRequest struct {
	DeckID string `json:"deck_id" binding:"required"`
}

type JoinSessionRequest struct {
	RoomCode   string `json:"room_code" binding:"required"`
	PlayerName string `json:"player_name" binding:"required"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.sessionService.CreateRoom(req.DeckID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room_code": code})
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	players, err := h.sessionService.JoinRoom(req.RoomCode, req.PlayerName)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if errors.Is(err, services.ErrRoomNotJoinable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_code": req.RoomCode, "players": players})
}

func (h *SessionHandler) SessionStatus(c *gin.Context) {
	room, err := h.sessionService.RoomSnapshot(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_code":     room.Code,
		"deck_id":       room.DeckID,
		"status":        room.Status,
		"players":       room.Players,
		"current_index": room.CurrentIndex,
		"scores":        room.Scores,
	})
}

// CancelSession ends a session out-of-band and tells every connected peer.
func (h *SessionHandler) CancelSession(c *gin.Context) {
	code := c.Param("code")

	if err := h.sessionService.CancelRoom(code); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.summaryService.SnapshotRoom(code)
	h.hub.BroadcastCancelled(code)

	c.JSON(http.StatusOK, gin.H{"status": services.StatusCancelled})
}

// GetSummary returns the per-round game report, as JSON or as a CSV
// download when ?format=csv is set.
func (h *SessionHandler) GetSummary(c *gin.Context) {
	code := c.Param("code")

	summary, err := h.summaryService.GetSummary(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
		return
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := services.WriteSummaryCSV(&buf, summary); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render summary"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_summary.csv", summary.RoomCode))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, summary)
}
