package controllers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/services"
)

const (
	HeaderTranscription = "X-Transcription"
	HeaderResponseText  = "X-Response-Text"

	quickAudioFilename = "audio.webm"
)

// VoiceProvider is the speech-to-text, chat and text-to-speech backend.
type VoiceProvider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	CompleteChat(ctx context.Context, message string, history []services.ChatMessage) (string, error)
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error)
}

type ExchangeRecorder interface {
	Record(ctx context.Context, userID uint, inbound, reply string) bool
}

// VoiceHandlers serves the provider-backed endpoints.
type VoiceHandlers struct {
	Provider       VoiceProvider
	Recorder       ExchangeRecorder
	MaxUploadBytes int64
	Log            logging.Logger
}

type chatTurn struct {
	Role      string    `json:"role" binding:"required,oneof=user assistant"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcribe converts an uploaded "audio" file to text.
func (h *VoiceHandlers) Transcribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		audio, filename, err := h.readAudio(c)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		text, err := h.Provider.Transcribe(c.Request.Context(), audio, filename)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text, "duration": nil})
	}
}

// Chat completes one turn and records it as an exchange. The reply is
// returned even if recording fails.
func (h *VoiceHandlers) Chat() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, h.Log)
		if !ok {
			return
		}
		var body struct {
			Message             string     `json:"message" binding:"required"`
			ConversationHistory []chatTurn `json:"conversation_history" binding:"dive"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, h.Log, bindError(err))
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			respondError(c, h.Log, apperr.Validation("message", "message is required"))
			return
		}

		ctx := c.Request.Context()
		history := make([]services.ChatMessage, 0, len(body.ConversationHistory))
		for _, turn := range body.ConversationHistory {
			history = append(history, services.ChatMessage{Role: turn.Role, Content: turn.Content})
		}

		reply, err := h.Provider.CompleteChat(ctx, body.Message, history)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		h.Recorder.Record(ctx, user.ID, body.Message, reply)

		now := time.Now()
		updated := make([]chatTurn, 0, len(body.ConversationHistory)+2)
		for _, turn := range body.ConversationHistory {
			if turn.Timestamp.IsZero() {
				turn.Timestamp = now
			}
			updated = append(updated, turn)
		}
		updated = append(updated,
			chatTurn{Role: models.RoleUser, Content: body.Message, Timestamp: now},
			chatTurn{Role: models.RoleAssistant, Content: reply, Timestamp: now},
		)
		c.JSON(http.StatusOK, gin.H{"response": reply, "conversation_history": updated})
	}
}

// TTS returns mp3 audio for the given text.
func (h *VoiceHandlers) TTS() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Text  string `json:"text" binding:"required"`
			Voice string `json:"voice"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, h.Log, bindError(err))
			return
		}
		audio, err := h.Provider.SynthesizeSpeech(c.Request.Context(), body.Text, strings.TrimSpace(body.Voice))
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=speech.mp3")
		c.Data(http.StatusOK, "audio/mpeg", audio)
	}
}

// QuickInteraction runs transcribe and chat in sequence, then synthesizes the
// reply while the exchange is recorded. Only a synthesis failure fails the
// request.
func (h *VoiceHandlers) QuickInteraction() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c, h.Log)
		if !ok {
			return
		}
		audioIn, filename, err := h.readAudio(c)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		if filename == "" {
			filename = quickAudioFilename
		}

		ctx := c.Request.Context()
		transcription, err := h.Provider.Transcribe(ctx, audioIn, filename)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		if strings.TrimSpace(transcription) == "" {
			respondError(c, h.Log, apperr.Validation("audio", "no speech detected in audio"))
			return
		}

		reply, err := h.Provider.CompleteChat(ctx, transcription, nil)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}

		var (
			g        errgroup.Group
			audioOut []byte
		)
		g.Go(func() error {
			var err error
			audioOut, err = h.Provider.SynthesizeSpeech(ctx, reply, "")
			return err
		})
		g.Go(func() error {
			h.Recorder.Record(ctx, user.ID, transcription, reply)
			return nil
		})
		if err := g.Wait(); err != nil {
			respondError(c, h.Log, err)
			return
		}

		c.Header(HeaderTranscription, base64.StdEncoding.EncodeToString([]byte(transcription)))
		c.Header(HeaderResponseText, base64.StdEncoding.EncodeToString([]byte(reply)))
		c.Data(http.StatusOK, "audio/mpeg", audioOut)
	}
}

// readAudio loads the "audio" multipart field, enforcing the upload limit.
func (h *VoiceHandlers) readAudio(c *gin.Context) ([]byte, string, error) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", apperr.Validation("audio", fmt.Sprintf("audio file exceeds %d MB", h.MaxUploadBytes>>20))
		}
		return nil, "", apperr.Validation("audio", "audio file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", apperr.Internal("open uploaded audio", err)
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, "", apperr.Internal("read uploaded audio", err)
	}
	if len(audio) == 0 {
		return nil, "", apperr.Validation("audio", "audio file is empty")
	}
	return audio, fh.Filename, nil
}
