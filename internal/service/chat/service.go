package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/characterai-go/internal/model/chat"
)

var (
	ErrCharacterRequired = errors.New("character id is required")
	ErrChatRequired      = errors.New("chat id is required")
	ErrSessionNotFound   = errors.New("session not found")
)

// Service keeps gateway sessions and their transcripts in memory.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewService bootstraps an empty in-memory store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// CreateSession registers a session bound to an existing chat2 chat.
func (s *Service) CreateSession(_ context.Context, characterID, chatID, creatorID string) (chat.Session, error) {
	if characterID == "" {
		return chat.Session{}, ErrCharacterRequired
	}
	if chatID == "" {
		return chat.Session{}, ErrChatRequired
	}

	session := chat.Session{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		ChatID:      chatID,
		CreatorID:   creatorID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// UpdateLastTurn records the latest character turn. pending marks the
// candidate for promotion on the next reply.
func (s *Service) UpdateLastTurn(_ context.Context, sessionID, turnID, candidateID string, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastTurnID = turnID
	session.LastCandidateID = candidateID
	session.PrimaryPending = pending
	s.sessions[sessionID] = session
	return nil
}

// ReplaceCandidate swaps the content of the transcript entry for turnID, as
// after a regeneration. It reports whether an entry was found.
func (s *Service) ReplaceCandidate(_ context.Context, sessionID, turnID, candidateID, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].TurnID == turnID && messages[i].Sender == chat.SenderCharacter {
			messages[i].CandidateID = candidateID
			messages[i].Content = content
			return true, nil
		}
	}
	return false, nil
}

// RemoveTurns drops transcript entries belonging to the given turns and
// returns how many were removed.
func (s *Service) RemoveTurns(_ context.Context, sessionID string, turnIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}

	drop := make(map[string]bool, len(turnIDs))
	for _, id := range turnIDs {
		drop[id] = true
	}

	kept := messages[:0]
	for _, m := range messages {
		if m.TurnID != "" && drop[m.TurnID] {
			continue
		}
		kept = append(kept, m)
	}
	removed := len(messages) - len(kept)
	s.messages[sessionID] = kept

	if session := s.sessions[sessionID]; drop[session.LastTurnID] {
		session.LastTurnID = ""
		session.LastCandidateID = ""
		session.PrimaryPending = false
		for i := len(kept) - 1; i >= 0; i-- {
			if kept[i].Sender == chat.SenderCharacter {
				session.LastTurnID = kept[i].TurnID
				session.LastCandidateID = kept[i].CandidateID
				break
			}
		}
		s.sessions[sessionID] = session
	}
	return removed, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
