package cai

import (
	"context"
	"net/http"
	"net/url"
)

// rateLabels maps a 0..3 rating (terrible, bad, good, fantastic) to the label
// ids the annotation endpoint expects.
var rateLabels = [...][]int{
	{234, 238, 241, 244},
	{235, 237, 241, 244},
	{235, 238, 240, 244},
	{235, 238, 241, 243},
}

// ChatService covers the legacy history-based chat endpoints.
type ChatService struct {
	client *Client
}

// RoomSpec describes a group chat room.
type RoomSpec struct {
	Characters []string `json:"characters"`
	Name       string   `json:"name"`
	Topic      string   `json:"topic"`
}

func (s *ChatService) CreateRoom(ctx context.Context, room RoomSpec, opts ...CallOption) (Payload, error) {
	if room.Characters == nil {
		room.Characters = []string{}
	}
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/room/create/",
		body: struct {
			RoomSpec
			Visibility string `json:"visibility"`
		}{RoomSpec: room, Visibility: "PRIVATE"},
	}, opts)
}

// Rate labels a message. rate must be within 0..3, otherwise *LabelError is
// returned before any request is made.
func (s *ChatService) Rate(ctx context.Context, rate int, historyID, messageID string, opts ...CallOption) (Payload, error) {
	if rate < 0 || rate >= len(rateLabels) {
		return nil, &LabelError{Rate: rate}
	}
	return s.client.do(ctx, request{
		method: http.MethodPut,
		path:   "chat/annotations/label/",
		body: map[string]any{
			"label_ids":           rateLabels[rate],
			"history_external_id": historyID,
			"message_uuid":        messageID,
		},
	}, opts)
}

// NextMessage asks for another reply to parentMsgUUID. tgt is the character's
// internal participant id.
func (s *ChatService) NextMessage(ctx context.Context, historyID, parentMsgUUID, tgt string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/streaming/",
		split:  true,
		body: map[string]string{
			"history_external_id": historyID,
			"parent_msg_uuid":     parentMsgUUID,
			"tgt":                 tgt,
		},
	}, opts)
}

func (s *ChatService) Histories(ctx context.Context, characterID string, number int, opts ...CallOption) (Payload, error) {
	if number <= 0 {
		number = 50
	}
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/character/histories_v2/",
		body: map[string]any{
			"external_id": characterID,
			"number":      number,
		},
	}, opts)
}

func (s *ChatService) History(ctx context.Context, historyID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "chat/history/msgs/user/?history_external_id=" + url.QueryEscape(historyID),
	}, opts)
}

// Continue returns the latest history with a character, creating none.
func (s *ChatService) Continue(ctx context.Context, characterID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/history/continue/",
		body:   map[string]string{"character_external_id": characterID},
	}, opts)
}

// SendMessage posts text to a history and returns the final streamed reply.
func (s *ChatService) SendMessage(ctx context.Context, historyID, tgt, text string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/streaming/",
		split:  true,
		body: map[string]string{
			"history_external_id": historyID,
			"tgt":                 tgt,
			"text":                text,
		},
	}, opts)
}

func (s *ChatService) DeleteMessages(ctx context.Context, historyID string, uuids []string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/history/msgs/delete/",
		body: map[string]any{
			"history_id":      historyID,
			"uuids_to_delete": uuids,
		},
	}, opts)
}

// NewChat starts a fresh legacy history with a character.
func (s *ChatService) NewChat(ctx context.Context, characterID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "chat/history/create/",
		body:   map[string]string{"character_external_id": characterID},
	}, opts)
}
