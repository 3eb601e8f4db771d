package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bluffquiz/models"

	"gorm.io/gorm"
)

type DeckService struct {
	db *gorm.DB
}

func NewDeckService(db *gorm.DB) *DeckService {
	return &DeckService{db: db}
}

// deckRequiredColumns must all be present in an uploaded deck. Image_Link
// is optional.
var deckRequiredColumns = []string{"Question_ID", "Question_Text", "Correct_Answer", "Predefined_Fake"}

const imageLinkColumn = "Image_Link"

// ParsedQuestion is one deck row in the shape the rest of the system
// consumes: {id, text, answer, fake, image?}.
type ParsedQuestion struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Answer string  `json:"answer"`
	Fake   string  `json:"fake"`
	Image  *string `json:"image"`
}

// ParseDeck validates and parses a CSV deck. A bare image file name becomes
// an /assets/ path; absolute http(s) links pass through untouched.
func ParseDeck(r io.Reader) ([]ParsedQuestion, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("parser error: %v", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range deckRequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	var questions []ParsedQuestion
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser error: %v", err)
		}

		question := ParsedQuestion{
			ID:     record[columns["Question_ID"]],
			Text:   record[columns["Question_Text"]],
			Answer: record[columns["Correct_Answer"]],
			Fake:   record[columns["Predefined_Fake"]],
			Image:  normalizeImageLink(record, columns),
		}
		questions = append(questions, question)
	}

	return questions, nil
}

func normalizeImageLink(record []string, columns map[string]int) *string {
	idx, ok := columns[imageLinkColumn]
	if !ok || idx >= len(record) {
		return nil
	}

	value := strings.TrimSpace(record[idx])
	if value == "" || strings.EqualFold(value, "nan") {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(value), "http") {
		value = "/assets/" + value
	}
	return &value
}

// SaveDeck persists a parsed deck so hosts can reuse it across sessions.
func (s *DeckService) SaveDeck(name string, questions []ParsedQuestion) (*models.Deck, error) {
	if len(questions) == 0 {
		return nil, errors.New("deck has no questions")
	}

	// Start transaction
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	deck := models.Deck{Name: name}
	if err := tx.Create(&deck).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for i, question := range questions {
		row := models.DeckQuestion{
			DeckID:     deck.ID,
			QuestionID: question.ID,
			Text:       question.Text,
			Answer:     question.Answer,
			Fake:       question.Fake,
			Image:      question.Image,
			Order:      i + 1,
		}
		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// Reload with questions in deck order
	return s.GetDeckByID(deck.ID)
}

func (s *DeckService) GetDecks() ([]models.Deck, error) {
	var decks []models.Deck
	err := s.db.Order("created_at DESC").Find(&decks).Error
	return decks, err
}

func (s *DeckService) GetDeckByID(id uint) (*models.Deck, error) {
	var deck models.Deck
	err := s.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("deck_questions.\"order\" ASC")
	}).First(&deck, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("deck not found")
		}
		return nil, err
	}
	return &deck, nil
}
