package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	aiService "github.com/zhouzirui/characterai-go/internal/service/ai"
	chatService "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/utils"
)

// Handler manages streaming character replies via Server-Sent Events
type Handler struct {
	aiService *aiService.Service
	chatSvc   *chatService.Service
	log       *zap.Logger
}

// New creates a new stream handler
func New(aiSvc *aiService.Service, chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		aiService: aiSvc,
		chatSvc:   chatSvc,
		log:       logger,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest sends userMessage to the session's character and streams
// the reply as it is generated. Errors after the headers are sent are reported
// as error events.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	utils.SetupSSEHeaders(w)

	name := session.CharacterID
	if c, err := h.aiService.ResolveCharacter(ctx, session.CharacterID); err == nil && c.Name != "" {
		name = c.Name
	}
	h.send(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   name,
	})

	response, err := h.streamReply(ctx, w, flusher, sessionID, userMessage)
	if err != nil {
		h.sendError(w, flusher, sessionID, fmt.Sprintf("generation failed: %v", err))
		return nil
	}

	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})
	h.send(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	h.log.Info("completed stream", zap.String("session_id", sessionID), zap.Int("length", len(response.Content)))
	return nil
}

func (h *Handler) streamReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID, userMessage string) (*schema.Message, error) {
	stream, err := h.aiService.ChatModel(sessionID).Stream(ctx, []*schema.Message{schema.UserMessage(userMessage)})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.send(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   chunk.Content,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty stream")
	}
	return schema.ConcatMessages(chunks)
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		h.log.Warn("failed to send sse chunk", zap.String("event", response.Event), zap.Error(err))
	}
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, sessionID, message string) {
	h.send(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     message,
	})
}
