package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"VoiceAssistant/middleware"
	"VoiceAssistant/models"
	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/services"
)

type ConversationStore interface {
	CreateConversation(ctx context.Context, requesterID, ownerID uint, title string) (*models.Conversation, error)
	ListConversations(ctx context.Context, requesterID, ownerID uint) ([]models.Conversation, error)
	ListMessages(ctx context.Context, requesterID, conversationID uint) ([]models.Message, error)
	SaveMessage(ctx context.Context, requesterID uint, in services.SaveMessageInput) (*models.Message, error)
	DeleteConversation(ctx context.Context, requesterID, conversationID uint) error
}

type messageResponse struct {
	MessageID     uint      `json:"message_id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	AudioDuration *float64  `json:"audio_duration"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateConversation accepts user_id and title as query parameters or a JSON body.
func CreateConversation(store ConversationStore, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		var body struct {
			UserID uint   `form:"user_id" json:"user_id" binding:"required"`
			Title  string `form:"title" json:"title" binding:"required"`
		}
		if err := bindQueryOrJSON(c, &body); err != nil {
			respondError(c, log, bindError(err))
			return
		}

		conv, err := store.CreateConversation(c.Request.Context(), user.ID, body.UserID, body.Title)
		if err != nil {
			respondError(c, log, err)
			return
		}
		statusOK(c, "created", gin.H{"conversation_id": conv.ID})
	}
}

// ListConversations handler for GET /conversations/:user_id
func ListConversations(store ConversationStore, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		ownerID, err := uintParam(c, "user_id")
		if err != nil {
			respondError(c, log, err)
			return
		}
		convs, err := store.ListConversations(c.Request.Context(), user.ID, ownerID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, convs)
	}
}

// ListMessages handler for GET /messages/:conversation_id
func ListMessages(store ConversationStore, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		convID, err := uintParam(c, "conversation_id")
		if err != nil {
			respondError(c, log, err)
			return
		}
		msgs, err := store.ListMessages(c.Request.Context(), user.ID, convID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		out := make([]messageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageResponse{
				MessageID:     m.ID,
				Role:          m.Role,
				Content:       m.Content,
				AudioDuration: m.AudioDuration,
				CreatedAt:     m.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// SaveMessage appends one message to a conversation the caller owns.
func SaveMessage(store ConversationStore, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		var body struct {
			ConversationID uint     `form:"conversation_id" json:"conversation_id" binding:"required"`
			Role           string   `form:"role" json:"role" binding:"required,oneof=user assistant"`
			Content        string   `form:"content" json:"content" binding:"required"`
			AudioDuration  *float64 `form:"audio_duration" json:"audio_duration" binding:"omitempty,gte=0"`
		}
		if err := bindQueryOrJSON(c, &body); err != nil {
			respondError(c, log, bindError(err))
			return
		}

		msg, err := store.SaveMessage(c.Request.Context(), user.ID, services.SaveMessageInput{
			ConversationID: body.ConversationID,
			Role:           body.Role,
			Content:        body.Content,
			AudioDuration:  body.AudioDuration,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}
		statusOK(c, "saved", gin.H{"message_id": msg.ID})
	}
}

// DeleteConversation removes a conversation and its messages.
func DeleteConversation(store ConversationStore, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, log)
		if !ok {
			return
		}
		convID, err := uintParam(c, "conversation_id")
		if err != nil {
			respondError(c, log, err)
			return
		}
		if err := store.DeleteConversation(c.Request.Context(), user.ID, convID); err != nil {
			respondError(c, log, err)
			return
		}
		statusOK(c, "deleted", nil)
	}
}

func requireUser(c *gin.Context, log logging.Logger) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, log, apperr.Unauthenticated("Could not validate credentials", nil))
	}
	return user, ok
}

func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || v == 0 {
		return 0, apperr.Validation(name, name+" must be a positive integer")
	}
	return uint(v), nil
}

// bindQueryOrJSON reads a JSON body when one is sent and query parameters
// otherwise.
func bindQueryOrJSON(c *gin.Context, obj any) error {
	if c.ContentType() == binding.MIMEJSON && c.Request.ContentLength != 0 {
		return c.ShouldBindJSON(obj)
	}
	return c.ShouldBindQuery(obj)
}
