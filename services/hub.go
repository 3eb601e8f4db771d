package services

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/gorilla/websocket"
)

// Hub owns the live websocket connections, grouped per room code. All
// registration, removal, and fan-out runs on the single Run goroutine, so
// a client's send channel is only ever closed and written from one place.
// Rooms themselves live in the SessionService; the hub only tracks
// sockets, and dropping the last socket of a room does not touch the room.
type Hub struct {
	rooms          map[string]map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan outboundDelivery
	connCount      chan connCountRequest
	sessionService *SessionService
	summaryService *SummaryService
}

// connCountRequest asks the Run goroutine how many connections a room has,
// so callers never touch the connection map directly.
type connCountRequest struct {
	roomCode string
	reply    chan int
}

// outboundDelivery is one fan-out order: a pre-encoded frame for every
// connection of a room, optionally excluding the originating client.
type outboundDelivery struct {
	roomCode string
	data     []byte
	exclude  *Client
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	roomCode string
}

func NewHub(sessionService *SessionService, summaryService *SummaryService) *Hub {
	return &Hub{
		rooms:          make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan outboundDelivery),
		connCount:      make(chan connCountRequest),
		sessionService: sessionService,
		summaryService: summaryService,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if h.rooms[client.roomCode] == nil {
				h.rooms[client.roomCode] = make(map[*Client]bool)
			}
			h.rooms[client.roomCode][client] = true
			log.Printf("Client %s registered for room %s - %d connections in room", client.id, client.roomCode, len(h.rooms[client.roomCode]))

			// Late joiners catch up on the question being shown right now.
			// Submission and choice history is not replayed.
			h.replayActiveQuestion(client)

		case client := <-h.unregister:
			if peers, ok := h.rooms[client.roomCode]; ok && peers[client] {
				delete(peers, client)
				close(client.send)
				if len(peers) == 0 {
					delete(h.rooms, client.roomCode)
				}
				log.Printf("Client %s unregistered from room %s - %d connections in room", client.id, client.roomCode, len(peers))
			}

		case req := <-h.connCount:
			req.reply <- len(h.rooms[req.roomCode])

		case delivery := <-h.broadcast:
			// Snapshot the recipients before sending: a dead peer detected
			// mid-delivery unregisters itself, which mutates the set.
			recipients := make([]*Client, 0, len(h.rooms[delivery.roomCode]))
			for client := range h.rooms[delivery.roomCode] {
				if client != delivery.exclude {
					recipients = append(recipients, client)
				}
			}

			for _, client := range recipients {
				select {
				case client.send <- delivery.data:
				default:
					// Peer can't keep up; treat it like a disconnect and
					// keep delivering to everyone else.
					log.Printf("Client %s in room %s is not draining its send buffer, dropping connection", client.id, client.roomCode)
					delete(h.rooms[client.roomCode], client)
					close(client.send)
					if len(h.rooms[client.roomCode]) == 0 {
						delete(h.rooms, client.roomCode)
					}
				}
			}
		}
	}
}

// replayActiveQuestion sends a synthetic question frame to a single client
// when its room already has a question in play. Runs on the hub goroutine.
func (h *Hub) replayActiveQuestion(client *Client) {
	room, err := h.sessionService.RoomSnapshot(client.roomCode)
	if err != nil {
		return
	}
	if room.Status != StatusInProgress || room.CurrentIndex < 0 {
		return
	}

	select {
	case client.send <- encodeQuestionFrame(room.CurrentIndex, room.CurrentQuestion):
		log.Printf("Replayed question %d to late joiner %s in room %s", room.CurrentIndex, client.id, client.roomCode)
	default:
		// Freshly registered client with a full buffer should not happen;
		// the read loop's exit will clean it up.
	}
}

// ConnectionCount reports the live connections for a room.
func (h *Hub) ConnectionCount(roomCode string) int {
	reply := make(chan int, 1)
	h.connCount <- connCountRequest{roomCode: normalizeRoomCode(roomCode), reply: reply}
	return <-reply
}

// BroadcastCancelled notifies every connection of a room that the session
// was cancelled. Also used by the HTTP cancel endpoint.
func (h *Hub) BroadcastCancelled(roomCode string) {
	h.broadcast <- outboundDelivery{roomCode: normalizeRoomCode(roomCode), data: encodeCancelledFrame()}
}

// RegisterClient wires an upgraded websocket connection into the hub and
// starts its pumps. The caller has already verified the room exists.
func (h *Hub) RegisterClient(conn *websocket.Conn, roomCode string) *Client {
	client := &Client{
		hub:      h,
		id:       generateClientID(),
		socket:   conn,
		send:     make(chan []byte, 256),
		roomCode: normalizeRoomCode(roomCode),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for client %s: %v", c.id, err)
			}
			break
		}

		event, err := DecodeEvent(message)
		if err != nil {
			// Unknown types are a forward-compatible no-op; malformed
			// frames fail alone without dropping the connection.
			log.Printf("Dropping frame from client %s in room %s: %v", c.id, c.roomCode, err)
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) writePump() {
	defer func() {
		c.socket.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleEvent feeds one decoded frame through the session state machine and
// fans out whatever the transition table says. Events that are illegal in
// the room's current state are logged and ignored, mirroring the unknown
// frame policy.
func (c *Client) handleEvent(event Event) {
	sessions := c.hub.sessionService

	switch e := event.(type) {
	case QuestionEvent:
		if err := sessions.StartQuestion(c.roomCode, e.Index, e.Question); err != nil {
			log.Printf("Ignoring question frame for room %s: %v", c.roomCode, err)
			return
		}
		// The host already renders the question; relaying it back would
		// just echo. Everyone else gets it.
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeQuestionFrame(e.Index, e.Question), exclude: c}

	case FakeEvent:
		if err := sessions.RecordFake(c.roomCode, e.Player, e.Text); err != nil {
			log.Printf("Ignoring fake frame for room %s: %v", c.roomCode, err)
			return
		}
		// Only the player's name goes out; the text stays hidden until the
		// host reveals the answer pool.
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeSubmissionFrame(e.Player)}

	case AnswersEvent:
		pool, err := sessions.ComposeAnswers(c.roomCode, e.Answers)
		if err != nil {
			log.Printf("Ignoring answers frame for room %s: %v", c.roomCode, err)
			return
		}
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeAnswersFrame(pool)}

	case ChoiceEvent:
		if err := sessions.RecordChoice(c.roomCode, e.Player, e.Answer); err != nil {
			log.Printf("Ignoring choice frame for room %s: %v", c.roomCode, err)
		}
		// No broadcast: the host polls with results_request.

	case ResultsRequestEvent:
		stats, err := sessions.TallyResults(c.roomCode)
		if err != nil {
			log.Printf("Ignoring results request for room %s: %v", c.roomCode, err)
			return
		}
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeResultsFrame(stats)}

	case CancelEvent:
		if err := sessions.CancelRoom(c.roomCode); err != nil {
			log.Printf("Ignoring cancel frame for room %s: %v", c.roomCode, err)
			return
		}
		if c.hub.summaryService != nil {
			c.hub.summaryService.SnapshotRoom(c.roomCode)
		}
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeCancelledFrame()}

	case GameFinishedEvent:
		if err := sessions.FinishRoom(c.roomCode); err != nil {
			log.Printf("Ignoring game finished frame for room %s: %v", c.roomCode, err)
			return
		}
		if c.hub.summaryService != nil {
			c.hub.summaryService.SnapshotRoom(c.roomCode)
		}
		c.hub.broadcast <- outboundDelivery{roomCode: c.roomCode, data: encodeGameFinishedFrame()}
	}
}

func generateClientID() string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return "client_" + hex.EncodeToString(bytes)
}
