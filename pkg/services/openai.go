package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/config"
	"VoiceAssistant/pkg/logging"
)

const DefaultAudioFilename = "audio.wav"

// personaPrompt is sent as the system message on every completion.
const personaPrompt = `Eres Kati, una asistente virtual colombiana. Hablas de forma cálida, cercana y natural, como una amiga que ayuda con gusto.

Estilo:
- Respuestas cortas y directas, de tres o cuatro oraciones como máximo.
- Usa expresiones colombianas cuando salgan naturales: "¡Listo!", "Con mucho gusto", "¡Uy!", "¿Cierto?", "chévere", "bacano".
- Tono profesional sin sonar rígido ni robótico.

No uses modismos de España, México o Argentina (vale, tío, órale, wey, che).

Si te falta un dato para ayudar, pregúntalo en una sola frase. Por ejemplo, si te piden el clima, pregunta de qué ciudad.`

// ChatMessage is one prior turn passed to the completion as context.
type ChatMessage struct {
	Role    string
	Content string
}

// OpenAIService talks to the speech-to-text, chat and text-to-speech
// endpoints. It holds no per-user state.
type OpenAIService struct {
	client      *openai.Client
	whisper     string
	chatModel   string
	ttsModel    string
	voice       string
	maxTokens   int
	temperature float32
	log         logging.Logger
}

func NewOpenAIService(cfg *config.Config, log logging.Logger) *OpenAIService {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIService{
		client:      openai.NewClientWithConfig(oc),
		whisper:     cfg.WhisperModel,
		chatModel:   cfg.GPTModel,
		ttsModel:    cfg.TTSModel,
		voice:       cfg.TTSVoice,
		maxTokens:   cfg.ChatMaxTokens,
		temperature: cfg.ChatTemperature,
		log:         log,
	}
}

// Transcribe returns the text spoken in audio. filename only hints the
// container format to the provider.
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = DefaultAudioFilename
	}
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.whisper,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", apperr.Provider("transcribe", err)
	}
	text := strings.TrimSpace(resp.Text)
	s.log.Info(ctx, "transcription done", "bytes", len(audio), "chars", len(text))
	return text, nil
}

// CompleteChat streams a completion and returns the concatenated deltas.
func (s *OpenAIService) CompleteChat(ctx context.Context, message string, history []ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: personaPrompt})
	for _, h := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       s.chatModel,
		Messages:    msgs,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Stream:      true,
	})
	if err != nil {
		return "", apperr.Provider("chat completion", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", apperr.Provider("chat completion stream", err)
		}
		for _, choice := range chunk.Choices {
			reply.WriteString(choice.Delta.Content)
		}
	}

	s.log.Info(ctx, "chat completion done", "history", len(history), "chars", reply.Len())
	return reply.String(), nil
}

// SynthesizeSpeech returns mp3 audio for text. An empty voice uses the
// configured default.
func (s *OpenAIService) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = s.voice
	}
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, apperr.Provider("synthesize speech", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, apperr.Provider("read speech audio", err)
	}
	s.log.Info(ctx, "speech synthesized", "voice", voice, "bytes", len(audio))
	return audio, nil
}
