package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

const streamBuffer = 16

// chatModel exposes one session as an eino chat model. Only the latest user
// message of the input is sent; the chat history lives on the server.
type chatModel struct {
	svc       *Service
	sessionID string
}

var _ model.BaseChatModel = (*chatModel)(nil)

// ChatModel returns an eino model bound to sessionID.
func (s *Service) ChatModel(sessionID string) model.BaseChatModel {
	return &chatModel{svc: s, sessionID: sessionID}
}

func (m *chatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reply, err := m.svc.Reply(ctx, m.sessionID, lastUserContent(input), nil)
	if err != nil {
		return nil, err
	}
	msg := schema.AssistantMessage(reply.Content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{FinishReason: "stop"}
	return msg, nil
}

// Stream emits the growth of the primary candidate as assistant deltas.
// Concatenating the chunks yields the final candidate text.
func (m *chatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	text := lastUserContent(input)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	sr, sw := schema.Pipe[*schema.Message](streamBuffer)
	go func() {
		defer sw.Close()

		var deltas deltaTracker
		_, err := m.svc.Reply(ctx, m.sessionID, text, func(msg *cai.Message) {
			delta, ok := deltas.next(msg.Text())
			if !ok {
				m.svc.log.Debug("candidate rewritten mid-stream", zap.String("session_id", m.sessionID))
				return
			}
			if delta != "" {
				sw.Send(schema.AssistantMessage(delta, nil), nil)
			}
		})
		if err != nil {
			sw.Send(nil, err)
			return
		}

		done := &schema.Message{
			Role:         schema.Assistant,
			ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"},
		}
		sw.Send(done, nil)
	}()
	return sr, nil
}

func lastUserContent(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

// deltaTracker turns the cumulative candidate text of successive frames into
// appended suffixes.
type deltaTracker struct {
	sent string
}

// next returns the suffix not sent yet. ok is false when text no longer
// extends what was sent.
func (d *deltaTracker) next(text string) (string, bool) {
	if !strings.HasPrefix(text, d.sent) {
		return "", false
	}
	delta := text[len(d.sent):]
	d.sent = text
	return delta, true
}
