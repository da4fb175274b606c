package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
	"github.com/suPer8Hu/hugg-chat/internal/chat"
	"github.com/suPer8Hu/hugg-chat/internal/common"
	"github.com/suPer8Hu/hugg-chat/internal/httpapi/middleware"
)

type Handler struct {
	DB      *gorm.DB
	ChatSvc *chat.Service
	Log     *zap.Logger
}

func NewHandler(db *gorm.DB, svc *chat.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{DB: db, ChatSvc: svc, Log: log}
}

func (h *Handler) Ping(c *gin.Context) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			common.Fail(c, http.StatusServiceUnavailable, 50301, apperr.KindStorageUnavailable.Code(), "database unavailable")
			return
		}
	}
	common.OK(c, gin.H{"pong": true})
}

type errorResponse struct {
	status int
	code   int
	msg    string
}

// Forbidden and NotFound share one response so callers cannot probe for
// other users' chats.
var errorResponses = map[apperr.Kind]errorResponse{
	apperr.KindUnauthenticated:    {http.StatusUnauthorized, 40101, "unauthorized"},
	apperr.KindForbidden:          {http.StatusNotFound, 40004, "chat not found"},
	apperr.KindNotFound:           {http.StatusNotFound, 40004, "chat not found"},
	apperr.KindValidation:         {http.StatusBadRequest, 10002, "invalid request"},
	apperr.KindInvalidCursor:      {http.StatusBadRequest, 10003, "invalid cursor"},
	apperr.KindCompletionFailure:  {http.StatusBadGateway, 50201, "the model could not answer, please retry"},
	apperr.KindStorageUnavailable: {http.StatusServiceUnavailable, 50301, "storage unavailable"},
	apperr.KindDuplicateID:        {http.StatusConflict, 40901, "please retry"},
	apperr.KindRateLimited:        {http.StatusTooManyRequests, 42901, "too many prompts, slow down"},
	apperr.KindInternal:           {http.StatusInternalServerError, 50001, "internal error"},
}

// fail renders err with the fixed message of its kind. Validation errors
// carry their own message; every other cause stays in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp, ok := errorResponses[kind]
	if !ok {
		resp = errorResponses[apperr.KindInternal]
	}
	msg := resp.msg
	var ae *apperr.Error
	if kind == apperr.KindValidation && errors.As(err, &ae) {
		msg = ae.Message
	}

	fields := []zap.Field{
		zap.String("kind", kind.Code()),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Error(err),
	}
	if resp.status >= http.StatusInternalServerError {
		h.Log.Error("request failed", fields...)
	} else {
		h.Log.Debug("request rejected", fields...)
	}
	errCode := kind.Code()
	if kind == apperr.KindForbidden {
		errCode = apperr.KindNotFound.Code()
	}
	_ = c.Error(err)
	common.Fail(c, resp.status, resp.code, errCode, msg)
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	common.Fail(c, http.StatusBadRequest, 10001, apperr.KindValidation.Code(), msg)
}

func (h *Handler) userID(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, apperr.KindUnauthenticated.Code(), "unauthorized")
	}
	return uid, ok
}
