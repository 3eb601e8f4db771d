package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Wire-level frame type tags. Inbound and outbound frames share one tag
// namespace; "fake" comes in and is re-shaped to "submission" going out.
const (
	FrameQuestion       = "question"
	FrameCancelled      = "cancelled"
	FrameFake           = "fake"
	FrameSubmission     = "submission"
	FrameAnswers        = "answers"
	FrameChoice         = "choice"
	FrameResultsRequest = "results_request"
	FrameResults        = "results"
	FrameGameFinished   = "game_finished"
)

var (
	// ErrUnknownFrameType marks a frame whose type tag is not part of the
	// protocol. These are ignored, not treated as protocol violations, so
	// newer clients can talk to older servers.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrMalformedFrame marks a known frame type missing a required field.
	// The single frame is dropped; the connection stays open.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Event is the decoded form of one inbound client frame. The variant set is
// closed: every implementation of isEvent lives in this file.
type Event interface{ isEvent() }

type QuestionEvent struct {
	Index    int
	Question json.RawMessage
}

type CancelEvent struct{}

type FakeEvent struct {
	Player string
	Text   string
}

type AnswersEvent struct {
	Answers []string
}

type ChoiceEvent struct {
	Player string
	Answer string
}

type ResultsRequestEvent struct{}

type GameFinishedEvent struct{}

func (QuestionEvent) isEvent()       {}
func (CancelEvent) isEvent()         {}
func (FakeEvent) isEvent()           {}
func (AnswersEvent) isEvent()        {}
func (ChoiceEvent) isEvent()         {}
func (ResultsRequestEvent) isEvent() {}
func (GameFinishedEvent) isEvent()   {}

// inboundFrame is the superset of fields a client frame can carry. Index is
// a pointer so a missing index can be told apart from index 0.
type inboundFrame struct {
	Type     string          `json:"type"`
	Index    *int            `json:"index"`
	Question json.RawMessage `json:"question"`
	Player   string          `json:"player"`
	Text     string          `json:"text"`
	Answer   string          `json:"answer"`
	Answers  []string        `json:"answers"`
}

// DecodeEvent parses one websocket frame into its typed event. Callers are
// expected to drop the frame on ErrUnknownFrameType and ErrMalformedFrame
// rather than close the connection.
func DecodeEvent(data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch frame.Type {
	case FrameQuestion:
		if frame.Index == nil {
			return nil, fmt.Errorf("%w: question frame without index", ErrMalformedFrame)
		}
		if *frame.Index < 0 {
			return nil, fmt.Errorf("%w: question frame with negative index %d", ErrMalformedFrame, *frame.Index)
		}
		if len(frame.Question) == 0 {
			return nil, fmt.Errorf("%w: question frame without question payload", ErrMalformedFrame)
		}
		return QuestionEvent{Index: *frame.Index, Question: frame.Question}, nil

	case FrameCancelled:
		return CancelEvent{}, nil

	case FrameFake:
		if frame.Player == "" || frame.Text == "" {
			return nil, fmt.Errorf("%w: fake frame requires player and text", ErrMalformedFrame)
		}
		return FakeEvent{Player: frame.Player, Text: frame.Text}, nil

	case FrameAnswers:
		if frame.Answers == nil {
			return nil, fmt.Errorf("%w: answers frame without answers list", ErrMalformedFrame)
		}
		return AnswersEvent{Answers: frame.Answers}, nil

	case FrameChoice:
		if frame.Player == "" || frame.Answer == "" {
			return nil, fmt.Errorf("%w: choice frame requires player and answer", ErrMalformedFrame)
		}
		return ChoiceEvent{Player: frame.Player, Answer: frame.Answer}, nil

	case FrameResultsRequest:
		return ResultsRequestEvent{}, nil

	case FrameGameFinished:
		return GameFinishedEvent{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, frame.Type)
	}
}

// Outbound frames. One struct per variant so every field a client can see
// is spelled out here.

type questionFrame struct {
	Type     string          `json:"type"`
	Index    int             `json:"index"`
	Question json.RawMessage `json:"question"`
}

type cancelledFrame struct {
	Type string `json:"type"`
}

type submissionFrame struct {
	Type   string `json:"type"`
	Player string `json:"player"`
}

type answersFrame struct {
	Type    string   `json:"type"`
	Answers []string `json:"answers"`
}

type resultsFrame struct {
	Type  string         `json:"type"`
	Stats map[string]int `json:"stats"`
}

type gameFinishedFrame struct {
	Type string `json:"type"`
}

func encodeQuestionFrame(index int, question json.RawMessage) []byte {
	return mustEncode(questionFrame{Type: FrameQuestion, Index: index, Question: question})
}

func encodeCancelledFrame() []byte {
	return mustEncode(cancelledFrame{Type: FrameCancelled})
}

func encodeSubmissionFrame(player string) []byte {
	return mustEncode(submissionFrame{Type: FrameSubmission, Player: player})
}

func encodeAnswersFrame(answers []string) []byte {
	return mustEncode(answersFrame{Type: FrameAnswers, Answers: answers})
}

func encodeResultsFrame(stats map[string]int) []byte {
	if stats == nil {
		stats = map[string]int{}
	}
	return mustEncode(resultsFrame{Type: FrameResults, Stats: stats})
}

func encodeGameFinishedFrame() []byte {
	return mustEncode(gameFinishedFrame{Type: FrameGameFinished})
}

func mustEncode(frame interface{}) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Error marshaling outbound frame: %v", err)
		return nil
	}
	return data
}
