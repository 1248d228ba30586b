package chat

import (
	"encoding/json"
	"time"

	uuid "github.com/satori/go.uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ChatMessage is one relayed frame, kept so a party joining later can load
// the room history.
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Room      string    `json:"room_name" gorm:"index"`
	Text      string    `json:"text"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created"`
}

type Store struct {
	db *gorm.DB
}

func OpenDatabase(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true, FullSaveAssociations: true})
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ChatMessage{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// AddMessage persists one tagged frame. message is the already-tagged fan-out
// object; its "text" field, when present, is lifted into its own column.
func (s *Store) AddMessage(roomName string, message map[string]interface{}) (ChatMessage, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return ChatMessage{}, err
	}
	text, _ := message["text"].(string)
	chatMessage := ChatMessage{
		ID:        uuid.NewV4().String(),
		Room:      roomName,
		Text:      text,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}
	tx := s.db.Create(&chatMessage)
	return chatMessage, tx.Error
}

// Messages returns the room history, oldest first.
func (s *Store) Messages(roomName string) ([]ChatMessage, error) {
	messages := []ChatMessage{}
	tx := s.db.Where("room = ?", roomName).Order("created_at asc").Find(&messages)
	return messages, tx.Error
}
