package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSummaryNotFound = errors.New("summary not found")

// summaryTTL keeps a finished game's report around long enough for the
// host to export it after the room itself is gone.
const summaryTTL = 24 * time.Hour

// SummaryRow is one player's line for one round: what they bluffed, what
// they picked, whose answer fooled them, and how many others they fooled.
type SummaryRow struct {
	Round             int    `json:"round"`
	Player            string `json:"player"`
	SubmittedFake     string `json:"submitted_fake"`
	ChoiceMade        string `json:"choice_made"`
	ChoiceAuthor      string `json:"choice_author"`
	TimesFooledOthers int    `json:"times_fooled_others"`
}

type GameSummary struct {
	RoomCode    string         `json:"room_code"`
	DeckID      string         `json:"deck_id"`
	Status      string         `json:"status"`
	Players     []string       `json:"players"`
	Scores      map[string]int `json:"scores"`
	Rows        []SummaryRow   `json:"rows"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SummaryService turns a room's submissions and choices into a per-round
// report and populates the room's scores. The session core itself never
// computes scores; this is the collaborator that does.
type SummaryService struct {
	sessionService *SessionService
	redis          *redis.Client
}

func NewSummaryService(sessionService *SessionService, redisClient *redis.Client) *SummaryService {
	return &SummaryService{
		sessionService: sessionService,
		redis:          redisClient,
	}
}

// BuildSummary derives the report rows from a room snapshot. "System"
// marks a chosen answer that no player authored, i.e. the real answer or
// the deck's predefined fake.
func BuildSummary(room *Room) *GameSummary {
	rounds := make(map[int]bool)
	for idx := range room.Submissions {
		rounds[idx] = true
	}
	for idx := range room.Choices {
		rounds[idx] = true
	}

	indexes := make([]int, 0, len(rounds))
	for idx := range rounds {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	summary := &GameSummary{
		RoomCode:    room.Code,
		DeckID:      room.DeckID,
		Status:      room.Status,
		Players:     append([]string{}, room.Players...),
		Scores:      make(map[string]int),
		Rows:        []SummaryRow{},
		GeneratedAt: time.Now(),
	}

	for _, idx := range indexes {
		submissions := room.Submissions[idx]
		choices := room.Choices[idx]

		// Duplicate names share one identity, so one row covers them.
		seen := make(map[string]bool, len(room.Players))
		for _, player := range room.Players {
			if seen[player] {
				continue
			}
			seen[player] = true
			row := SummaryRow{
				Round:  idx + 1,
				Player: player,
			}

			for _, submission := range submissions {
				if submission.Player == player {
					row.SubmittedFake = submission.Text
					break
				}
			}

			if choice, ok := choices[player]; ok {
				row.ChoiceMade = choice
				row.ChoiceAuthor = "System"
				for _, submission := range submissions {
					if submission.Text == choice {
						row.ChoiceAuthor = submission.Player
						break
					}
				}
			}

			if row.SubmittedFake != "" {
				for chooser, answer := range choices {
					if chooser != player && answer == row.SubmittedFake {
						row.TimesFooledOthers++
					}
				}
			}

			summary.Scores[player] += row.TimesFooledOthers
			summary.Rows = append(summary.Rows, row)
		}
	}

	return summary
}

// SnapshotRoom builds the summary for a room that just ended, writes the
// computed scores back into the room, and stores the report in redis so it
// survives registry cleanup.
func (s *SummaryService) SnapshotRoom(code string) {
	room, err := s.sessionService.RoomSnapshot(code)
	if err != nil {
		log.Printf("Cannot snapshot summary for room %s: %v", code, err)
		return
	}

	summary := BuildSummary(room)

	if err := s.sessionService.UpdateScores(room.Code, summary.Scores); err != nil {
		log.Printf("Failed to write scores for room %s: %v", room.Code, err)
	}

	if err := s.storeSummary(summary); err != nil {
		log.Printf("Failed to store summary for room %s: %v", room.Code, err)
	}
}

// GetSummary returns the report for a room, building it live when the room
// is still registered and falling back to the stored snapshot otherwise.
func (s *SummaryService) GetSummary(code string) (*GameSummary, error) {
	room, err := s.sessionService.RoomSnapshot(code)
	if err == nil {
		return BuildSummary(room), nil
	}

	if s.redis == nil {
		return nil, ErrSummaryNotFound
	}

	data, err := s.redis.Get(context.Background(), summaryKey(code)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis error getting summary for %s: %v", code, err)
		}
		return nil, ErrSummaryNotFound
	}

	var summary GameSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored summary: %v", err)
	}
	return &summary, nil
}

func (s *SummaryService) storeSummary(summary *GameSummary) error {
	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %v", err)
	}

	return s.redis.Set(context.Background(), summaryKey(summary.RoomCode), data, summaryTTL).Err()
}

func summaryKey(code string) string {
	return "summary:" + normalizeRoomCode(code)
}

// WriteSummaryCSV renders the report in the spreadsheet layout hosts hand
// out after a game.
func WriteSummaryCSV(w io.Writer, summary *GameSummary) error {
	writer := csv.NewWriter(w)

	header := []string{"Round", "Player_Name", "Submitted_Fake", "Choice_Made", "Choice_Author", "Times_Fooled_Others"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range summary.Rows {
		record := []string{
			strconv.Itoa(row.Round),
			row.Player,
			row.SubmittedFake,
			row.ChoiceMade,
			row.ChoiceAuthor,
			strconv.Itoa(row.TimesFooledOthers),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
