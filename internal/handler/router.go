package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/handler/character"
	"github.com/zhouzirui/characterai-go/internal/handler/chat"
	"github.com/zhouzirui/characterai-go/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/characterai-go/internal/middleware"
	aiService "github.com/zhouzirui/characterai-go/internal/service/ai"
	chatService "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, aiSvc *aiService.Service, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	characterHandler := character.New(aiSvc, logger)
	chatHandler := chat.New(chatSvc, aiSvc, logger)
	streamHandler := stream.New(aiSvc, chatSvc, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		characterHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				_ = utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				logger.Warn("stream request rejected", zap.String("session_id", sessionID), zap.Error(err))
				status := http.StatusInternalServerError
				if errors.Is(err, chatService.ErrSessionNotFound) {
					status = http.StatusNotFound
				}
				_ = utils.RespondError(w, status, err.Error())
			}
		})
	})

	return r
}
