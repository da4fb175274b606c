package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/hugg-chat/internal/common"
)

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type createSessionReq struct {
	Title string `json:"title"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}

	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid, req.Title)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}

	page, err := h.ChatSvc.ListSessions(c.Request.Context(), uid, limit, c.Query("cursor"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, page)
}

func (h *Handler) GetChatSession(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	sess, err := h.ChatSvc.GetSession(c.Request.Context(), uid, c.Param("chat_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ChatStats(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	st, err := h.ChatSvc.Stats(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, st)
}

type renameReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) RenameChatSession(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid json")
		return
	}

	chatID := c.Param("chat_id")
	if err := h.ChatSvc.RenameSession(c.Request.Context(), uid, chatID, req.Title); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID, "title": req.Title})
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	if err := h.ChatSvc.DeleteSession(c.Request.Context(), uid, chatID); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID, "deleted": true})
}

type promptReq struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (h *Handler) SendPrompt(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req promptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "prompt is required")
		return
	}

	res, err := h.ChatSvc.SendPrompt(c.Request.Context(), uid, c.Param("chat_id"), req.Prompt)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}

	page, err := h.ChatSvc.GetHistory(c.Request.Context(), uid, c.Param("chat_id"), limit, c.Query("cursor"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, page)
}

func (h *Handler) ClearChatMessages(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	n, err := h.ChatSvc.ClearHistory(c.Request.Context(), uid, chatID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID, "deleted_count": n})
}

type generateTitleReq struct {
	FirstMessage      string `json:"first_message"`
	AssistantResponse string `json:"assistant_response"`
}

// GenerateTitle always answers 200; fallback tells the client the model was
// not used.
func (h *Handler) GenerateTitle(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req generateTitleReq
	_ = c.ShouldBindJSON(&req)

	title, fallback := h.ChatSvc.GenerateTitle(c.Request.Context(), uid, req.FirstMessage, req.AssistantResponse)
	common.OK(c, gin.H{"title": title, "fallback": fallback})
}
