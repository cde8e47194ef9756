package conversation

import (
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
	"VoiceAssistant/pkg/logging"
)

// Register registers conversation history routes (protected)
func Register(g *gin.RouterGroup, store controllers.ConversationStore, log logging.Logger) {
	g.POST("/create-conversation", controllers.CreateConversation(store, log))
	g.GET("/conversations/:user_id", controllers.ListConversations(store, log))
	g.DELETE("/conversations/:conversation_id", controllers.DeleteConversation(store, log))
	g.GET("/messages/:conversation_id", controllers.ListMessages(store, log))
	g.POST("/save-message", controllers.SaveMessage(store, log))
}
