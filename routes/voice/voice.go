package voice

import (
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
)

// Register registers the provider-backed routes (protected). limit runs
// before each handler since every one of them calls the paid provider.
func Register(g *gin.RouterGroup, h *controllers.VoiceHandlers, limit gin.HandlerFunc) {
	g.POST("/transcribe", limit, h.Transcribe())
	g.POST("/chat", limit, h.Chat())
	g.POST("/tts", limit, h.TTS())
	g.POST("/quick-interaction", limit, h.QuickInteraction())
}
