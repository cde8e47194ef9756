package routes

import (
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
	"VoiceAssistant/middleware"
	"VoiceAssistant/pkg/logging"

	authRoutes "VoiceAssistant/routes/auth"
	convRoutes "VoiceAssistant/routes/conversation"
	healthRoutes "VoiceAssistant/routes/health"
	voiceRoutes "VoiceAssistant/routes/voice"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth          controllers.Authenticator
	Tokens        middleware.Authenticator
	Conversations controllers.ConversationStore
	Voice         *controllers.VoiceHandlers
	Limiter       *middleware.RateLimiter
	Version       string
	Log           logging.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	healthRoutes.Register(r, d.Version)

	requireAuth := middleware.AuthMiddleware(d.Tokens, d.Log)

	auth := r.Group("/api/auth")
	authRoutes.RegisterPublic(auth, d.Auth, d.Log)
	authRoutes.RegisterProtected(auth.Group("", requireAuth), d.Log)

	voice := r.Group("/api/voice", requireAuth)
	voiceRoutes.Register(voice, d.Voice, d.Limiter.Middleware())
	convRoutes.Register(voice, d.Conversations, d.Log)
}
