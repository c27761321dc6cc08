package routes

import (
	"context"
	"net/http"
	"time"

	"chatpdf-backend/internal/store"
	"chatpdf-backend/internal/telemetry"
	"chatpdf-backend/middleware"
	"chatpdf-backend/models"
	"chatpdf-backend/services"
	"chatpdf-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupChatRoutes(router *gin.Engine, st *store.Store, chatService *services.ChatService,
	metrics *telemetry.Metrics, authMW *middleware.AuthMiddleware) {

	msgs := router.Group("/documents/:id/messages")
	msgs.Use(authMW.RequireAuth())

	msgs.POST("", SendMessage(chatService, metrics))
	msgs.GET("", ListMessages(st))
}

// SendMessage runs one grounded question/answer exchange against an
// indexed document.
func SendMessage(chatService *services.ChatService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ownerID := middleware.GetUserID(c)
		documentID := c.Param("id")

		start := time.Now()
		resp, err := chatService.Ask(c.Request.Context(), ownerID, documentID, req.Question)
		if metrics != nil {
			metrics.RecordChat(time.Since(start).Seconds(), err == nil)
		}
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// ListMessages returns the full transcript in chronological order.
func ListMessages(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := ownedDocument(c, st)
		if !ok {
			return
		}

		turns, err := st.ListTurns(context.Background(), doc.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve messages", nil)
			return
		}
		if turns == nil {
			turns = []models.ConversationTurn{}
		}

		c.JSON(http.StatusOK, gin.H{"messages": turns, "count": len(turns)})
	}
}
