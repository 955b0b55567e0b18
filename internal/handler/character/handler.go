package character

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	aiService "github.com/zhouzirui/characterai-go/internal/service/ai"
	"github.com/zhouzirui/characterai-go/pkg/utils"
)

// Handler 角色查询的HTTP处理器
type Handler struct {
	aiSvc *aiService.Service
	log   *zap.Logger
}

// New 创建角色处理器
func New(aiSvc *aiService.Service, logger *zap.Logger) *Handler {
	return &Handler{aiSvc: aiSvc, log: logger}
}

// RegisterRoutes 注册角色相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/characters", h.handleTrending)
	r.Get("/characters/search", h.handleSearch)
	r.Get("/characters/{characterID}", h.handleGet)
}

// handleTrending 列出热门角色
func (h *Handler) handleTrending(w http.ResponseWriter, r *http.Request) {
	list, err := h.aiSvc.Trending(r.Context())
	if err != nil {
		h.fail(w, "trending", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, list)
}

// handleSearch 按名称搜索角色
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	list, err := h.aiSvc.Search(r.Context(), query)
	if err != nil {
		h.fail(w, "search", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, list)
}

// handleGet 查询单个角色
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.aiSvc.ResolveCharacter(r.Context(), chi.URLParam(r, "characterID"))
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.ErrorStatus(err)
	h.log.Warn("character request failed", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	_ = utils.RespondError(w, status, err.Error())
}
