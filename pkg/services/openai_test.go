package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/config"
	"VoiceAssistant/pkg/logging"
)

func newTestOpenAI(t *testing.T, h http.Handler) *OpenAIService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		OpenAIAPIKey:    "sk-test",
		OpenAIBaseURL:   srv.URL + "/v1",
		WhisperModel:    "whisper-1",
		GPTModel:        "gpt-4o-mini",
		TTSModel:        "tts-1",
		TTSVoice:        "alloy",
		ChatMaxTokens:   150,
		ChatTemperature: 0.8,
		ProviderTimeout: 5 * time.Second,
	}
	return NewOpenAIService(cfg, logging.Discard())
}

func TestTranscribe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "audio.wav", hdr.Filename)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "RIFFfake", string(body))
		_, _ = io.WriteString(w, "hola, ¿cómo estás?\n")
	})
	svc := newTestOpenAI(t, mux)

	text, err := svc.Transcribe(context.Background(), []byte("RIFFfake"), "")
	require.NoError(t, err)
	assert.Equal(t, "hola, ¿cómo estás?", text)
}

func TestCompleteChatAccumulatesStream(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
		Stream      bool    `json:"stream"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"¡Uy, ", "muy bien!", " ¿Y tú?"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})
	svc := newTestOpenAI(t, mux)

	history := []ChatMessage{{Role: "user", Content: "hola"}, {Role: "assistant", Content: "¡Hola!"}}
	reply, err := svc.CompleteChat(context.Background(), "¿cómo estás?", history)
	require.NoError(t, err)
	assert.Equal(t, "¡Uy, muy bien! ¿Y tú?", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 150, got.MaxTokens)
	assert.InDelta(t, 0.8, got.Temperature, 0.0001)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Kati")
	assert.Equal(t, "hola", got.Messages[1].Content)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "¿cómo estás?", got.Messages[3].Content)
}

func TestSynthesizeSpeechDefaultsVoice(t *testing.T) {
	var req struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3bytes"))
	})
	svc := newTestOpenAI(t, mux)

	audio, err := svc.SynthesizeSpeech(context.Background(), "hola", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3bytes"), audio)
	assert.Equal(t, "tts-1", req.Model)
	assert.Equal(t, "alloy", req.Voice)
	assert.Equal(t, "mp3", req.ResponseFormat)

	_, err = svc.SynthesizeSpeech(context.Background(), "hola", "nova")
	require.NoError(t, err)
	assert.Equal(t, "nova", req.Voice)
}

func TestProviderFailuresAreWrapped(t *testing.T) {
	svc := newTestOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
	}))
	ctx := context.Background()

	_, err := svc.Transcribe(ctx, []byte("x"), "a.webm")
	assert.True(t, errors.Is(err, apperr.ErrProvider))

	_, err = svc.CompleteChat(ctx, "hola", nil)
	assert.True(t, errors.Is(err, apperr.ErrProvider))

	_, err = svc.SynthesizeSpeech(ctx, "hola", "")
	assert.True(t, errors.Is(err, apperr.ErrProvider))
}
