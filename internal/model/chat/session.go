package chat

import "time"

// Session binds a gateway conversation to one chat2 chat.
type Session struct {
	ID          string `json:"id"`
	CharacterID string `json:"characterId"`
	ChatID      string `json:"chatId"`
	CreatorID   string `json:"creatorId"`

	// LastTurnID and LastCandidateID point at the latest character turn.
	LastTurnID      string `json:"lastTurnId,omitempty"`
	LastCandidateID string `json:"lastCandidateId,omitempty"`

	// PrimaryPending marks a regenerated candidate that the next reply must
	// promote to primary.
	PrimaryPending bool `json:"primaryPending,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
