package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
)

const MaxTitleLength = 200

// Exchange is one inbound user message and the reply produced for it.
type Exchange struct {
	UserID  uint   `json:"user_id"`
	Inbound string `json:"inbound"`
	Reply   string `json:"reply"`
}

type SaveMessageInput struct {
	ConversationID uint
	Role           string
	Content        string
	AudioDuration  *float64
}

// ConversationService is a pass-through to the database; it keeps no
// conversation state in memory.
type ConversationService struct {
	db  *gorm.DB
	log logging.Logger
	now func() time.Time
}

func NewConversationService(db *gorm.DB, log logging.Logger) *ConversationService {
	return &ConversationService{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces time.Now. Intended for tests.
func (s *ConversationService) SetClock(now func() time.Time) { s.now = now }

// AppendExchange stores ex in the user's most recently updated conversation,
// creating one first when the user has none. Both messages and the
// conversation's updated_at bump are committed in one transaction.
func (s *ConversationService) AppendExchange(ctx context.Context, ex Exchange) (*models.Conversation, error) {
	conv, err := s.latestOrCreate(ctx, ex.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userMsg := models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: ex.Inbound, CreatedAt: now}
		if err := tx.Create(&userMsg).Error; err != nil {
			return fmt.Errorf("save user message: %w", err)
		}
		botMsg := models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: ex.Reply, CreatedAt: now}
		if err := tx.Create(&botMsg).Error; err != nil {
			return fmt.Errorf("save assistant message: %w", err)
		}
		touched, err := touchConversation(tx, conv.ID, now)
		if err != nil {
			return err
		}
		conv = touched
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("append exchange", err)
	}

	s.log.Info(ctx, "exchange saved", "conversation_id", conv.ID, "user_id", ex.UserID)
	return conv, nil
}

// latestOrCreate persists a new conversation immediately so it has an id
// before any message references it.
func (s *ConversationService) latestOrCreate(ctx context.Context, userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("conversation_id DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Persistence("load latest conversation", err)
	}

	now := s.now()
	conv = models.Conversation{
		UserID:    userID,
		Title:     "Conversación " + now.Format("02/01 15:04"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, apperr.Persistence("create conversation", err)
	}
	s.log.Info(ctx, "conversation created", "conversation_id", conv.ID, "user_id", userID)
	return &conv, nil
}

// CreateConversation opens a new titled conversation. Callers may only create
// conversations for themselves.
func (s *ConversationService) CreateConversation(ctx context.Context, requesterID, ownerID uint, title string) (*models.Conversation, error) {
	if requesterID != ownerID {
		return nil, apperr.Forbidden("not authorized")
	}
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperr.Validation("title", "title must be between 1 and 200 characters")
	}

	now := s.now()
	conv := models.Conversation{UserID: ownerID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, apperr.Persistence("create conversation", err)
	}
	s.log.Info(ctx, "conversation created", "conversation_id", conv.ID, "user_id", ownerID)
	return &conv, nil
}

// ListConversations returns ownerID's conversations, most recently updated first.
func (s *ConversationService) ListConversations(ctx context.Context, requesterID, ownerID uint) ([]models.Conversation, error) {
	if requesterID != ownerID {
		return nil, apperr.Forbidden("not authorized")
	}
	convs := []models.Conversation{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").Order("conversation_id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, apperr.Persistence("list conversations", err)
	}
	return convs, nil
}

// ListMessages returns the conversation's messages in creation order.
func (s *ConversationService) ListMessages(ctx context.Context, requesterID, conversationID uint) ([]models.Message, error) {
	db := s.db.WithContext(ctx)
	if _, err := ownedConversation(db, requesterID, conversationID); err != nil {
		return nil, err
	}
	msgs := []models.Message{}
	err := db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("message_id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Persistence("list messages", err)
	}
	return msgs, nil
}

// SaveMessage appends a single message to a conversation the requester owns.
func (s *ConversationService) SaveMessage(ctx context.Context, requesterID uint, in SaveMessageInput) (*models.Message, error) {
	if !models.ValidRole(in.Role) {
		return nil, apperr.Validation("role", "role must be 'user' or 'assistant'")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content", "content is required")
	}
	if in.AudioDuration != nil && *in.AudioDuration < 0 {
		return nil, apperr.Validation("audio_duration", "audio_duration must not be negative")
	}

	var msg models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := ownedConversation(tx, requesterID, in.ConversationID)
		if err != nil {
			return err
		}
		now := s.now()
		msg = models.Message{
			ConversationID: conv.ID,
			Role:           in.Role,
			Content:        in.Content,
			AudioDuration:  in.AudioDuration,
			CreatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("save message: %w", err)
		}
		_, err = touchConversation(tx, conv.ID, now)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Persistence("save message", err)
	}
	return &msg, nil
}

// DeleteConversation removes a conversation the requester owns together with
// its messages.
func (s *ConversationService) DeleteConversation(ctx context.Context, requesterID, conversationID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := ownedConversation(tx, requesterID, conversationID)
		if err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Delete(conv).Error; err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return err
		}
		return apperr.Persistence("delete conversation", err)
	}
	s.log.Info(ctx, "conversation deleted", "conversation_id", conversationID, "user_id", requesterID)
	return nil
}

func getConversation(db *gorm.DB, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Where("conversation_id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return nil, apperr.Persistence("load conversation", err)
	}
	return &conv, nil
}

// ownedConversation reports NotFound before Forbidden, matching the order the
// checks are observable from the API.
func ownedConversation(db *gorm.DB, requesterID, conversationID uint) (*models.Conversation, error) {
	conv, err := getConversation(db, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != requesterID {
		return nil, apperr.Forbidden("not authorized")
	}
	return conv, nil
}

// touchConversation raises updated_at to at unless a concurrent writer already
// moved it further, and returns the row as committed so far.
func touchConversation(tx *gorm.DB, conversationID uint, at time.Time) (*models.Conversation, error) {
	res := tx.Model(&models.Conversation{}).
		Where("conversation_id = ?", conversationID).
		UpdateColumn("updated_at", gorm.Expr("CASE WHEN updated_at < ? THEN ? ELSE updated_at END", at, at))
	if res.Error != nil {
		return nil, fmt.Errorf("update conversation timestamp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update conversation timestamp: conversation %d vanished", conversationID)
	}
	var conv models.Conversation
	if err := tx.Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	return &conv, nil
}
