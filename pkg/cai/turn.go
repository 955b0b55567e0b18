package cai

import (
	"encoding/json"
	"unicode"

	"github.com/google/uuid"
)

const (
	commandGenerateTurnCandidate = "generate_turn_candidate"
	commandCreateAndGenerateTurn = "create_and_generate_turn"
	commandCreateChat            = "create_chat"
	commandRemoveTurns           = "remove_turns"

	chatVisibilityPrivate = "VISIBILITY_PRIVATE"
	chatTypeOneOnOne      = "TYPE_ONE_ON_ONE"
)

// NewChatID mints a client-side chat identifier for Conn.NewChat.
func NewChatID() string {
	return uuid.NewString()
}

// NewTurnID mints a turn identifier usable as SendOptions.CustomID.
func NewTurnID() string {
	return uuid.NewString()
}

// TurnKey identifies a turn. TurnID is empty for turns the server has not
// numbered yet.
type TurnKey struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"turn_id,omitempty"`
}

// Author of a turn. Human authors carry a numeric user id; characters carry an
// opaque external id.
type Author struct {
	AuthorID string `json:"author_id"`
	IsHuman  bool   `json:"is_human,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Human reports whether AuthorID is a non-empty run of digits.
func (a Author) Human() bool {
	if a.AuthorID == "" {
		return false
	}
	for _, r := range a.AuthorID {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Candidate is one generated response for a turn.
type Candidate struct {
	CandidateID string `json:"candidate_id,omitempty"`
	RawContent  string `json:"raw_content"`
	IsFinal     *bool  `json:"is_final,omitempty"`
}

// Final reports whether generation of the candidate has completed.
func (c Candidate) Final() bool {
	return c.IsFinal != nil && *c.IsFinal
}

// Turn is one exchange unit of a chat.
type Turn struct {
	TurnKey            TurnKey     `json:"turn_key"`
	Author             Author      `json:"author"`
	Candidates         []Candidate `json:"candidates"`
	PrimaryCandidateID string      `json:"primary_candidate_id,omitempty"`
}

// Primary returns the first candidate, which the server streams into.
func (t *Turn) Primary() (Candidate, bool) {
	if t == nil || len(t.Candidates) == 0 {
		return Candidate{}, false
	}
	return t.Candidates[0], true
}

// Message is one frame received on the chat2 socket.
type Message struct {
	Command   string          `json:"command,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Turn      *Turn           `json:"turn,omitempty"`
	Chat      json.RawMessage `json:"chat,omitempty"`
	Comment   string          `json:"comment,omitempty"`

	// Raw is the frame exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Text returns the raw content of the primary candidate, if any.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	c, _ := m.Turn.Primary()
	return c.RawContent
}

// Final reports whether the frame carries a finished bot-authored candidate,
// the frame a generation request waits for.
func (m *Message) Final() bool {
	if m == nil || m.Turn == nil || m.Turn.Author.Human() {
		return false
	}
	c, ok := m.Turn.Primary()
	return ok && c.Final()
}

func decodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return &msg, nil
}

// serverError converts a frame without the expected field into a ServerError.
func (m *Message) serverError(expected string) *ServerError {
	var payload Payload
	_ = unmarshal(m.Raw, &payload)
	if m.Comment != "" {
		return &ServerError{Kind: KindComment, Message: m.Comment, Payload: payload}
	}
	return &ServerError{
		Kind:    KindUnexpected,
		Message: "frame has no " + expected + " field",
		Payload: payload,
	}
}

type command struct {
	Command                string                  `json:"command"`
	RequestID              string                  `json:"request_id,omitempty"`
	Payload                any                     `json:"payload"`
	UpdatePrimaryCandidate *updatePrimaryCandidate `json:"update_primary_candidate,omitempty"`
}

type updatePrimaryCandidate struct {
	CandidateID string  `json:"candidate_id"`
	TurnKey     TurnKey `json:"turn_key"`
}

type generateTurnCandidatePayload struct {
	CharacterID string  `json:"character_id"`
	TurnKey     TurnKey `json:"turn_key"`
}

type outgoingCandidate struct {
	RawContent string `json:"raw_content"`
}

type outgoingTurn struct {
	TurnKey    TurnKey             `json:"turn_key"`
	Author     Author              `json:"author"`
	Candidates []outgoingCandidate `json:"candidates"`
}

type createAndGenerateTurnPayload struct {
	CharacterID string       `json:"character_id"`
	Turn        outgoingTurn `json:"turn"`
}

type chatSpec struct {
	ChatID      string `json:"chat_id"`
	CreatorID   string `json:"creator_id"`
	Visibility  string `json:"visibility"`
	CharacterID string `json:"character_id"`
	Type        string `json:"type"`
}

type createChatPayload struct {
	Chat         chatSpec `json:"chat"`
	WithGreeting bool     `json:"with_greeting"`
}

type removeTurnsPayload struct {
	ChatID  string   `json:"chat_id"`
	TurnIDs []string `json:"turn_ids"`
}
