package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/caitest"
	"github.com/zhouzirui/characterai-go/internal/config"
	"github.com/zhouzirui/characterai-go/internal/model/character"
	aiService "github.com/zhouzirui/characterai-go/internal/service/ai"
	chatService "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/cai"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	srv := caitest.NewServer(t, "tok")
	srv.Handle(http.MethodGet, "/chat/characters/trending/", http.StatusOK,
		`{"trending_characters":[{"external_id":"char1","participant__name":"Socrates"}]}`)
	srv.Handle(http.MethodGet, "/chat/characters/search/", http.StatusOK,
		`{"characters":[{"external_id":"char2","participant__name":"Plato"}]}`)
	srv.Handle(http.MethodPost, "/chat/character/", http.StatusOK, `{"status":"Error: character not found"}`)

	client := cai.NewClient(cai.Config{
		Token:        "tok",
		BaseURL:      srv.BaseURL(),
		NeoURL:       srv.NeoURL(),
		WebSocketURL: srv.WebSocketURL(),
	})
	chatSvc := chatService.NewService()
	aiSvc := aiService.NewService(client, chatSvc, character.NewMemoryStore(nil), config.CAIConfig{CreatorID: "7"}, zap.NewNop())
	return NewRouter(chatSvc, aiSvc, zap.NewNop())
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK},
		{"trending", http.MethodGet, "/api/characters", http.StatusOK},
		{"search", http.MethodGet, "/api/characters/search?q=plato", http.StatusOK},
		{"search without query", http.MethodGet, "/api/characters/search", http.StatusBadRequest},
		{"unknown character", http.MethodGet, "/api/characters/nobody", http.StatusBadGateway},
		{"stream without message", http.MethodGet, "/api/stream/abc", http.StatusBadRequest},
		{"stream unknown session", http.MethodGet, "/api/stream/abc?message=hi", http.StatusNotFound},
		{"transcript unknown session", http.MethodGet, "/api/sessions/abc/messages", http.StatusNotFound},
		{"preflight", http.MethodOptions, "/api/session", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("%s %s: expected %d, got %d: %s", tt.method, tt.path, tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}
