package auth

import (
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
	"VoiceAssistant/pkg/logging"
)

// RegisterPublic registers public auth routes: /register, /login
func RegisterPublic(g *gin.RouterGroup, auth controllers.Authenticator, log logging.Logger) {
	g.POST("/register", controllers.Register(auth, log))
	g.POST("/login", controllers.Login(auth, log))
}

// RegisterProtected registers auth routes that need a valid token
func RegisterProtected(g *gin.RouterGroup, log logging.Logger) {
	g.GET("/me", controllers.Me(log))
}
