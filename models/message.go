package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role may be stored on a message.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

type Message struct {
	ID             uint      `gorm:"column:message_id;primaryKey" json:"message_id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	Role           string    `gorm:"size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	AudioDuration  *float64  `json:"audio_duration"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "voice_messages"
}
