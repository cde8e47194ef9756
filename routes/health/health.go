package health

import (
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
)

func Register(r *gin.Engine, version string) {
	r.GET("/", controllers.Health(version))
	r.GET("/health", controllers.Health(version))
}
