package services

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"
)

// Room statuses. Transitions only move forward: lobby -> in-progress ->
// finished, or lobby/in-progress -> cancelled. Finished and cancelled are
// terminal.
const (
	StatusLobby      = "lobby"
	StatusInProgress = "in-progress"
	StatusFinished   = "finished"
	StatusCancelled  = "cancelled"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNotJoinable  = errors.New("room is not accepting players")
	ErrGameNotActive    = errors.New("game is not in progress")
	ErrGameOver         = errors.New("game is already over")
	ErrNoActiveQuestion = errors.New("no active question")
)

// FakeSubmission is one player-authored decoy answer for a question.
type FakeSubmission struct {
	Player string `json:"player"`
	Text   string `json:"text"`
}

// Room is one isolated game instance. All fields are owned by the
// SessionService and must only be touched while holding its lock; callers
// outside this package see copies via RoomSnapshot.
type Room struct {
	Code            string                    `json:"room_code"`
	DeckID          string                    `json:"deck_id"`
	Status          string                    `json:"status"`
	Players         []string                  `json:"players"`
	CurrentIndex    int                       `json:"current_index"`
	CurrentQuestion json.RawMessage           `json:"current_question,omitempty"`
	Submissions     map[int][]FakeSubmission  `json:"submissions"`
	Choices         map[int]map[string]string `json:"choices"`
	Scores          map[string]int            `json:"scores"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// noQuestion is the CurrentIndex value before the host shows anything.
const noQuestion = -1

const (
	roomCodeLength  = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// createRoom retries this many times on a code collision before giving
	// up. With a 36^6 code space collisions are essentially theoretical.
	roomCodeAttempts = 10
)

// SessionService owns the room table. It is injected into the hub and the
// HTTP handlers; there is no package-level session state. All room
// mutations are serialized behind one lock, and the lock is never held
// across a network send (the hub snapshots recipients first).
type SessionService struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewSessionService() *SessionService {
	return &SessionService{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom registers a new lobby for the given deck and returns its code.
// The deck id is opaque to the session layer: the host client is the one
// reading questions out of the deck.
func (s *SessionService) CreateRoom(deckID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		if _, taken := s.rooms[code]; taken {
			log.Printf("Room code collision on %s, regenerating", code)
			continue
		}

		s.rooms[code] = &Room{
			Code:         code,
			DeckID:       deckID,
			Status:       StatusLobby,
			Players:      []string{},
			CurrentIndex: noQuestion,
			Submissions:  make(map[int][]FakeSubmission),
			Choices:      make(map[int]map[string]string),
			Scores:       make(map[string]int),
			CreatedAt:    time.Now(),
		}
		log.Printf("Created room %s for deck %s", code, deckID)
		return code, nil
	}

	return "", errors.New("exhausted room code attempts")
}

// RoomExists reports whether a room is registered under the code. Used to
// refuse websocket connections before upgrading.
func (s *SessionService) RoomExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[normalizeRoomCode(code)]
	return ok
}

// RoomSnapshot returns a deep copy of the room so callers can read it
// without racing mutations. Lookup is case-insensitive.
func (s *SessionService) RoomSnapshot(code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

// JoinRoom appends a player to the lobby and returns the full join-ordered
// player list. Duplicate names are allowed; a name is the only identity a
// player has. Joining is rejected once the lobby has closed.
func (s *SessionService) JoinRoom(code, playerName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusLobby {
		return nil, fmt.Errorf("%w: status is %s", ErrRoomNotJoinable, room.Status)
	}

	room.Players = append(room.Players, playerName)
	log.Printf("Player %q joined room %s (%d players)", playerName, room.Code, len(room.Players))

	players := make([]string, len(room.Players))
	copy(players, room.Players)
	return players, nil
}

// StartQuestion records the host's active question. The first question
// moves the room from lobby to in-progress; later ones just move the
// index. The server stores and relays question content without inspecting
// it -- the host client is authoritative for what gets asked.
func (s *SessionService) StartQuestion(code string, index int, question json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}

	switch room.Status {
	case StatusLobby:
		room.Status = StatusInProgress
	case StatusInProgress:
		// advancing to another question
	default:
		return ErrGameOver
	}

	room.CurrentIndex = index
	room.CurrentQuestion = question
	log.Printf("Room %s showing question %d", room.Code, index)
	return nil
}

// RecordFake appends a player's decoy answer for the active question. A
// fake arriving while no question is active is rejected instead of being
// keyed under a bogus index.
func (s *SessionService) RecordFake(code, player, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Status != StatusInProgress {
		return ErrGameNotActive
	}
	if room.CurrentIndex == noQuestion {
		return ErrNoActiveQuestion
	}

	idx := room.CurrentIndex
	room.Submissions[idx] = append(room.Submissions[idx], FakeSubmission{Player: player, Text: text})
	return nil
}

// ComposeAnswers builds the reveal pool for the active question: the host's
// base answers plus every fake submitted for the current index, duplicates
// collapsed, in a fresh random order. The permutation is drawn per reveal
// so it cannot be predicted from player identity or submission order.
func (s *SessionService) ComposeAnswers(code string, base []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusInProgress {
		return nil, ErrGameNotActive
	}
	if room.CurrentIndex == noQuestion {
		return nil, ErrNoActiveQuestion
	}

	seen := make(map[string]bool)
	pool := make([]string, 0, len(base)+len(room.Submissions[room.CurrentIndex]))
	for _, answer := range base {
		if !seen[answer] {
			seen[answer] = true
			pool = append(pool, answer)
		}
	}
	for _, submission := range room.Submissions[room.CurrentIndex] {
		if !seen[submission.Text] {
			seen[submission.Text] = true
			pool = append(pool, submission.Text)
		}
	}

	mathrand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool, nil
}

// RecordChoice stores a player's picked answer for the active question.
// The latest choice per player wins; there is no broadcast here, the host
// polls results explicitly.
func (s *SessionService) RecordChoice(code, player, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Status != StatusInProgress {
		return ErrGameNotActive
	}
	if room.CurrentIndex == noQuestion {
		return ErrNoActiveQuestion
	}

	idx := room.CurrentIndex
	if room.Choices[idx] == nil {
		room.Choices[idx] = make(map[string]string)
	}
	room.Choices[idx][player] = answer
	return nil
}

// TallyResults computes the histogram of chosen answers for the active
// question: answer string -> number of players whose latest choice is that
// answer. Reading is idempotent; nothing is cleared.
func (s *SessionService) TallyResults(code string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Status != StatusInProgress {
		return nil, ErrGameNotActive
	}
	if room.CurrentIndex == noQuestion {
		return nil, ErrNoActiveQuestion
	}

	stats := make(map[string]int)
	for _, answer := range room.Choices[room.CurrentIndex] {
		stats[answer]++
	}
	return stats, nil
}

// FinishRoom moves an in-progress game to its terminal finished status.
func (s *SessionService) FinishRoom(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Status != StatusInProgress {
		return ErrGameNotActive
	}

	room.Status = StatusFinished
	log.Printf("Room %s finished", room.Code)
	return nil
}

// CancelRoom moves a room to its terminal cancelled status. Cancelling an
// already-cancelled room is a no-op; a finished game cannot be cancelled.
func (s *SessionService) CancelRoom(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}
	switch room.Status {
	case StatusCancelled:
		return nil
	case StatusFinished:
		return ErrGameOver
	}

	room.Status = StatusCancelled
	log.Printf("Room %s cancelled", room.Code)
	return nil
}

// RemoveRoom drops a room from the registry entirely. Rooms are only
// removed by explicit cleanup; there is no idle eviction.
func (s *SessionService) RemoveRoom(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := normalizeRoomCode(code)
	if _, ok := s.rooms[normalized]; !ok {
		return ErrRoomNotFound
	}
	delete(s.rooms, normalized)
	return nil
}

// UpdateScores merges computed scores into the room. The session core never
// scores anything itself; the summary collaborator calls this.
func (s *SessionService) UpdateScores(code string, scores map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomCode(code)]
	if !ok {
		return ErrRoomNotFound
	}
	for player, score := range scores {
		room.Scores[player] = score
	}
	return nil
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateRoomCode() (string, error) {
	// Bytes at or above this limit wrap unevenly onto the charset and are
	// redrawn, so every character stays equally likely.
	limit := byte(256 - 256%len(roomCodeCharset))
	code := make([]byte, 0, roomCodeLength)
	buf := make([]byte, roomCodeLength)
	for len(code) < roomCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, roomCodeCharset[int(b)%len(roomCodeCharset)])
			if len(code) == roomCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

func copyRoom(room *Room) *Room {
	out := &Room{
		Code:            room.Code,
		DeckID:          room.DeckID,
		Status:          room.Status,
		Players:         append([]string{}, room.Players...),
		CurrentIndex:    room.CurrentIndex,
		CurrentQuestion: room.CurrentQuestion,
		Submissions:     make(map[int][]FakeSubmission, len(room.Submissions)),
		Choices:         make(map[int]map[string]string, len(room.Choices)),
		Scores:          make(map[string]int, len(room.Scores)),
		CreatedAt:       room.CreatedAt,
	}
	for idx, submissions := range room.Submissions {
		out.Submissions[idx] = append([]FakeSubmission{}, submissions...)
	}
	for idx, choices := range room.Choices {
		copied := make(map[string]string, len(choices))
		for player, answer := range choices {
			copied[player] = answer
		}
		out.Choices[idx] = copied
	}
	for player, score := range room.Scores {
		out.Scores[player] = score
	}
	return out
}
