package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/common"
	"github.com/suPer8Hu/hugg-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/hugg-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/hugg-chat/internal/ratelimit"
)

type Deps struct {
	DB      *gorm.DB
	ChatSvc *chat.Service
	Auth    middleware.Authenticator
	Limiter ratelimit.Limiter
	Log     *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "NOT_FOUND", "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	h := handlers.NewHandler(d.DB, d.ChatSvc, log)

	r.GET("/ping", h.Ping)

	// Chat (JWT required)
	authGroup := r.Group("/chat")
	authGroup.Use(middleware.AuthRequired(d.Auth))
	authGroup.POST("/sessions", h.CreateChatSession)
	authGroup.GET("/sessions", h.ListChatSessions)
	authGroup.GET("/sessions/:chat_id", h.GetChatSession)
	authGroup.PATCH("/sessions/:chat_id/title", h.RenameChatSession)
	authGroup.DELETE("/sessions/:chat_id", h.DeleteChatSession)
	authGroup.POST("/sessions/:chat_id/prompt", middleware.RateLimit(d.Limiter, log), h.SendPrompt)
	authGroup.GET("/sessions/:chat_id/messages", h.ListChatMessages)
	authGroup.DELETE("/sessions/:chat_id/messages", h.ClearChatMessages)
	authGroup.GET("/stats", h.ChatStats)
	authGroup.POST("/generate-title", h.GenerateTitle)
	return r
}
