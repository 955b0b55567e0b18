package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/model/chat"
	aiService "github.com/zhouzirui/characterai-go/internal/service/ai"
	chatService "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	aiSvc   *aiService.Service
	log     *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, aiSvc *aiService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		aiSvc:   aiSvc,
		log:     logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/sessions/{sessionID}/messages", h.handleTranscript)
	r.Post("/sessions/{sessionID}/regenerate", h.handleRegenerate)
	r.Delete("/sessions/{sessionID}/turns", h.handleDeleteTurns)
}

type createSessionResponse struct {
	Session  chat.Session  `json:"session"`
	Greeting *chat.Message `json:"greeting,omitempty"`
}

// handleCreateSession 创建会话并建立 chat2 聊天
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CharacterID  string `json:"characterId"`
		WithGreeting *bool  `json:"withGreeting"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.CharacterID == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "characterId is required")
		return
	}

	withGreeting := true
	if payload.WithGreeting != nil {
		withGreeting = *payload.WithGreeting
	}

	session, greeting, err := h.aiSvc.StartSession(r.Context(), payload.CharacterID, withGreeting)
	if err != nil {
		h.fail(w, "create session", err)
		return
	}

	_ = utils.RespondJSON(w, http.StatusCreated, createSessionResponse{Session: session, Greeting: greeting})
}

// handleSendMessage 发送消息并等待角色回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Content   string `json:"content"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.aiSvc.Reply(r.Context(), payload.SessionID, payload.Content, nil)
	if err != nil {
		h.fail(w, "send message", err)
		return
	}

	_ = utils.RespondJSON(w, http.StatusOK, reply)
}

// handleTranscript 返回会话记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, "transcript", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, messages)
}

// handleRegenerate 重新生成最后一条角色回复
func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	reply, err := h.aiSvc.Regenerate(r.Context(), chi.URLParam(r, "sessionID"), nil)
	if err != nil {
		h.fail(w, "regenerate", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, reply)
}

// handleDeleteTurns 删除指定轮次
func (h *Handler) handleDeleteTurns(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TurnIDs []string `json:"turnIds"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	removed, err := h.aiSvc.DeleteTurns(r.Context(), chi.URLParam(r, "sessionID"), payload.TurnIDs)
	if err != nil {
		h.fail(w, "delete turns", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("chat request failed", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	_ = utils.RespondError(w, status, err.Error())
}

// statusFor 先处理会话层错误，其余交给 utils.ErrorStatus。
func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrCharacterRequired),
		errors.Is(err, chatService.ErrChatRequired),
		errors.Is(err, aiService.ErrEmptyMessage),
		errors.Is(err, aiService.ErrNoTurns):
		return http.StatusBadRequest
	case errors.Is(err, aiService.ErrNothingToRegenerate):
		return http.StatusConflict
	default:
		return utils.ErrorStatus(err)
	}
}
