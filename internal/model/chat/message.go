package chat

import "time"

const (
	SenderUser      = "user"
	SenderCharacter = "character"
)

// Message mirrors one turn of the chat for the transcript endpoint.
type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	TurnID      string    `json:"turnId,omitempty"`
	CandidateID string    `json:"candidateId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
