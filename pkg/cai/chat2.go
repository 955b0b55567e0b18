package cai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Chat2Service covers the chat2 REST calls served by the neo host. The turn
// exchange itself goes through Conn.
type Chat2Service struct {
	client *Client
}

// Histories lists chats with a character, each with up to preview turns.
func (s *Chat2Service) Histories(ctx context.Context, characterID string, preview int, opts ...CallOption) (Payload, error) {
	if preview < 0 {
		preview = 2
	}
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("chats/?character_ids=%s&num_preview_turns=%d", url.QueryEscape(characterID), preview),
		neo:    true,
	}, opts)
}

// RecentChat returns the most recent chat with a character.
func (s *Chat2Service) RecentChat(ctx context.Context, characterID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "chats/recent/" + url.PathEscape(characterID),
		neo:    true,
	}, opts)
}

// History returns the turns of a chat.
func (s *Chat2Service) History(ctx context.Context, chatID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "turns/" + url.PathEscape(chatID) + "/",
		neo:    true,
	}, opts)
}

type annotation struct {
	Type  string `json:"annotation_type"`
	Value int    `json:"annotation_value"`
}

type rateCandidateBody struct {
	TurnKey     TurnKey    `json:"turn_key"`
	CandidateID string     `json:"candidate_id"`
	Annotation  annotation `json:"annotation"`
}

// Rate stars a candidate.
func (s *Chat2Service) Rate(ctx context.Context, rate int, chatID, turnID, candidateID string, opts ...CallOption) (Payload, error) {
	return s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "annotation/create",
		neo:    true,
		body: rateCandidateBody{
			TurnKey:     TurnKey{ChatID: chatID, TurnID: turnID},
			CandidateID: candidateID,
			Annotation:  annotation{Type: "star", Value: rate},
		},
	}, opts)
}
