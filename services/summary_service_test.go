package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// playedRoom builds a two-round game: round 1 Alice's fake fools Bob and
// Cara, round 2 nobody is fooled.
func playedRoom(t *testing.T) (*SessionService, string) {
	t.Helper()
	svc, code := newLobby(t)

	for _, player := range []string{"Alice", "Bob", "Cara"} {
		if _, err := svc.JoinRoom(code, player); err != nil {
			t.Fatalf("join %s failed: %v", player, err)
		}
	}

	startQuestion(t, svc, code, 0)
	mustRecordFake(t, svc, code, "Alice", "Gravity is a magnet")
	mustRecordFake(t, svc, code, "Bob", "Air has no weight")
	mustRecordChoice(t, svc, code, "Alice", "Saturn")
	mustRecordChoice(t, svc, code, "Bob", "Gravity is a magnet")
	mustRecordChoice(t, svc, code, "Cara", "Gravity is a magnet")

	startQuestion(t, svc, code, 1)
	mustRecordFake(t, svc, code, "Cara", "Round two fake")
	mustRecordChoice(t, svc, code, "Alice", "Real answer")
	mustRecordChoice(t, svc, code, "Cara", "Round two fake")

	if err := svc.FinishRoom(code); err != nil {
		t.Fatalf("FinishRoom failed: %v", err)
	}
	return svc, code
}

func mustRecordFake(t *testing.T, svc *SessionService, code, player, text string) {
	t.Helper()
	if err := svc.RecordFake(code, player, text); err != nil {
		t.Fatalf("RecordFake(%s) failed: %v", player, err)
	}
}

func mustRecordChoice(t *testing.T, svc *SessionService, code, player, answer string) {
	t.Helper()
	if err := svc.RecordChoice(code, player, answer); err != nil {
		t.Fatalf("RecordChoice(%s) failed: %v", player, err)
	}
}

func findRow(rows []SummaryRow, round int, player string) *SummaryRow {
	for i := range rows {
		if rows[i].Round == round && rows[i].Player == player {
			return &rows[i]
		}
	}
	return nil
}

func TestBuildSummaryRows(t *testing.T) {
	svc, code := playedRoom(t)
	room, err := svc.RoomSnapshot(code)
	if err != nil {
		t.Fatalf("RoomSnapshot failed: %v", err)
	}

	summary := BuildSummary(room)

	// three players, two rounds
	if len(summary.Rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(summary.Rows))
	}

	alice := findRow(summary.Rows, 1, "Alice")
	if alice == nil {
		t.Fatal("no round 1 row for Alice")
	}
	if alice.SubmittedFake != "Gravity is a magnet" {
		t.Errorf("Alice fake = %q", alice.SubmittedFake)
	}
	if alice.ChoiceMade != "Saturn" || alice.ChoiceAuthor != "System" {
		t.Errorf("Alice choice = %q by %q, want Saturn by System", alice.ChoiceMade, alice.ChoiceAuthor)
	}
	if alice.TimesFooledOthers != 2 {
		t.Errorf("Alice fooled %d, want 2", alice.TimesFooledOthers)
	}

	bob := findRow(summary.Rows, 1, "Bob")
	if bob.ChoiceAuthor != "Alice" {
		t.Errorf("Bob was fooled by %q, want Alice", bob.ChoiceAuthor)
	}
	if bob.TimesFooledOthers != 0 {
		t.Errorf("Bob fooled %d, want 0", bob.TimesFooledOthers)
	}

	// picking your own fake fools nobody
	cara := findRow(summary.Rows, 2, "Cara")
	if cara.TimesFooledOthers != 0 {
		t.Errorf("Cara fooled %d in round 2, want 0 (own fake)", cara.TimesFooledOthers)
	}
	if cara.ChoiceAuthor != "Cara" {
		t.Errorf("Cara's round 2 choice author = %q, want Cara", cara.ChoiceAuthor)
	}

	// a player with no choice that round has an empty choice cell
	bob2 := findRow(summary.Rows, 2, "Bob")
	if bob2.ChoiceMade != "" || bob2.ChoiceAuthor != "" {
		t.Errorf("Bob round 2 = %+v, want empty choice", bob2)
	}

	if summary.Scores["Alice"] != 2 || summary.Scores["Bob"] != 0 || summary.Scores["Cara"] != 0 {
		t.Errorf("scores = %v", summary.Scores)
	}
}

func TestSnapshotRoomPopulatesScores(t *testing.T) {
	svc, code := playedRoom(t)
	summaries := NewSummaryService(svc, nil)

	summaries.SnapshotRoom(code)

	room, _ := svc.RoomSnapshot(code)
	if room.Scores["Alice"] != 2 {
		t.Errorf("room scores after snapshot = %v", room.Scores)
	}
}

func TestGetSummaryFromLiveRoom(t *testing.T) {
	svc, code := playedRoom(t)
	summaries := NewSummaryService(svc, nil)

	summary, err := summaries.GetSummary(strings.ToLower(code))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.RoomCode != code || len(summary.Rows) != 6 {
		t.Errorf("summary = %s with %d rows", summary.RoomCode, len(summary.Rows))
	}
}

func TestGetSummaryUnknownRoom(t *testing.T) {
	summaries := NewSummaryService(NewSessionService(), nil)

	if _, err := summaries.GetSummary("ZZZZZZ"); !errors.Is(err, ErrSummaryNotFound) {
		t.Errorf("error = %v, want ErrSummaryNotFound", err)
	}
}

func TestWriteSummaryCSV(t *testing.T) {
	svc, code := playedRoom(t)
	room, _ := svc.RoomSnapshot(code)
	summary := BuildSummary(room)

	var buf bytes.Buffer
	if err := WriteSummaryCSV(&buf, summary); err != nil {
		t.Fatalf("WriteSummaryCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("csv has %d lines, want header + 6 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Round,Player_Name,Submitted_Fake") {
		t.Errorf("csv header = %q", lines[0])
	}
	if !strings.Contains(buf.String(), "Gravity is a magnet") {
		t.Errorf("csv missing fake text:\n%s", buf.String())
	}
}
