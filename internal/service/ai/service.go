package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/config"
	"github.com/zhouzirui/characterai-go/internal/model/character"
	"github.com/zhouzirui/characterai-go/internal/model/chat"
	chatservice "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/cai"
)

var (
	ErrEmptyMessage        = errors.New("message is required")
	ErrNothingToRegenerate = errors.New("session has no character turn to regenerate")
	ErrNoTurns             = errors.New("turn ids are required")
	ErrCreatorUnknown      = errors.New("could not determine creator id")
)

// Reply is the outcome of one exchange.
type Reply struct {
	SessionID   string       `json:"sessionId"`
	TurnID      string       `json:"turnId"`
	CandidateID string       `json:"candidateId"`
	Content     string       `json:"content"`
	Message     *cai.Message `json:"-"`
}

// Service drives chat2 exchanges on behalf of gateway sessions. Each exchange
// dials its own connection; exchanges on the same session run one at a time.
type Service struct {
	client     *cai.Client
	chats      *chatservice.Service
	characters character.Store
	cfg        config.CAIConfig
	log        *zap.Logger

	creatorMu sync.Mutex
	creatorID string

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is dropped from Service.locks once no exchange holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires the client, the session store and the character cache.
func NewService(client *cai.Client, chats *chatservice.Service, characters character.Store, cfg config.CAIConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:     client,
		chats:      chats,
		characters: characters,
		cfg:        cfg,
		log:        logger,
		creatorID:  cfg.CreatorID,
		locks:      make(map[string]*sessionLock),
	}
}

// lockSession serializes exchanges on sessionID. The returned func releases
// the lock.
func (s *Service) lockSession(sessionID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, sessionID)
		}
	}
}

// CreatorID returns the configured creator id, or looks up the account behind
// the token once and caches it.
func (s *Service) CreatorID(ctx context.Context) (string, error) {
	s.creatorMu.Lock()
	defer s.creatorMu.Unlock()
	if s.creatorID != "" {
		return s.creatorID, nil
	}

	info, err := s.client.User.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("lookup creator: %w", err)
	}

	var body struct {
		User struct {
			User struct {
				ID int64 `json:"id"`
			} `json:"user"`
		} `json:"user"`
	}
	if err := info.Decode(&body); err != nil {
		return "", fmt.Errorf("lookup creator: %w", err)
	}
	if body.User.User.ID == 0 {
		return "", ErrCreatorUnknown
	}

	s.creatorID = strconv.FormatInt(body.User.User.ID, 10)
	s.log.Info("resolved creator id", zap.String("creator_id", s.creatorID))
	return s.creatorID, nil
}

func (s *Service) author(creatorID string) cai.Author {
	return cai.Author{AuthorID: creatorID, IsHuman: true, Name: s.cfg.AuthorName}
}

// ResolveCharacter returns a cached character or fetches its info.
func (s *Service) ResolveCharacter(ctx context.Context, characterID string) (character.Character, error) {
	if c, ok := s.characters.FindByID(characterID); ok {
		return c, nil
	}

	info, err := s.client.Character.Info(ctx, characterID)
	if err != nil {
		return character.Character{}, err
	}
	c, err := character.FromPayload(info)
	if err != nil {
		return character.Character{}, fmt.Errorf("decode character %s: %w", characterID, err)
	}
	s.characters.Put(c)
	return c, nil
}

// Trending lists trending characters and caches them.
func (s *Service) Trending(ctx context.Context) ([]character.Character, error) {
	p, err := s.client.Character.Trending(ctx)
	if err != nil {
		return nil, err
	}
	return s.cacheList(p, "trending_characters")
}

// Search finds characters by name.
func (s *Service) Search(ctx context.Context, query string) ([]character.Character, error) {
	p, err := s.client.Character.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.cacheList(p, "characters")
}

func (s *Service) cacheList(p cai.Payload, key string) ([]character.Character, error) {
	list, err := character.ListFromPayload(p, key)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for _, c := range list {
		s.characters.Put(c)
	}
	return list, nil
}

// StartSession creates a chat2 chat with the character and a gateway session
// bound to it. The greeting, when requested and sent, is stored as the first
// transcript entry and returned.
func (s *Service) StartSession(ctx context.Context, characterID string, withGreeting bool) (chat.Session, *chat.Message, error) {
	if _, err := s.ResolveCharacter(ctx, characterID); err != nil {
		return chat.Session{}, nil, err
	}
	creatorID, err := s.CreatorID(ctx)
	if err != nil {
		return chat.Session{}, nil, err
	}

	chatID := cai.NewChatID()
	var greeting *cai.Message
	err = s.client.Connect(ctx, func(conn *cai.Conn) error {
		_, g, err := conn.NewChat(ctx, characterID, chatID, creatorID, withGreeting)
		greeting = g
		return err
	})
	if err != nil {
		return chat.Session{}, nil, err
	}

	session, err := s.chats.CreateSession(ctx, characterID, chatID, creatorID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	s.log.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("character_id", characterID),
		zap.String("chat_id", chatID),
	)

	if greeting == nil || greeting.Turn == nil {
		return session, nil, nil
	}

	turnID, candidateID := turnIdentity(greeting)
	msg := chat.Message{
		SessionID:   session.ID,
		Sender:      chat.SenderCharacter,
		Content:     greeting.Text(),
		TurnID:      turnID,
		CandidateID: candidateID,
	}
	if err := s.chats.SaveMessage(ctx, msg); err != nil {
		return chat.Session{}, nil, err
	}
	if err := s.chats.UpdateLastTurn(ctx, session.ID, turnID, candidateID, false); err != nil {
		return chat.Session{}, nil, err
	}
	session.LastTurnID, session.LastCandidateID = turnID, candidateID
	return session, &msg, nil
}

// Reply sends text to the session's character and waits for the final
// candidate. onUpdate sees every bot frame, including the final one.
func (s *Service) Reply(ctx context.Context, sessionID, text string, onUpdate cai.CandidateHandler) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	defer s.lockSession(sessionID)()

	session, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	opts := &cai.SendOptions{CustomID: cai.NewTurnID(), OnUpdate: onUpdate}
	if session.PrimaryPending {
		opts.TurnID = session.LastTurnID
		opts.CandidateID = session.LastCandidateID
	}

	var resp *cai.Message
	err = s.client.Connect(ctx, func(conn *cai.Conn) error {
		resp, err = conn.SendMessage(ctx, session.CharacterID, session.ChatID, text, s.author(session.CreatorID), opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	userMsg := chat.Message{SessionID: sessionID, Sender: chat.SenderUser, Content: text, TurnID: opts.CustomID}
	if err := s.chats.SaveMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	reply := newReply(sessionID, resp)
	botMsg := chat.Message{
		SessionID:   sessionID,
		Sender:      chat.SenderCharacter,
		Content:     reply.Content,
		TurnID:      reply.TurnID,
		CandidateID: reply.CandidateID,
	}
	if err := s.chats.SaveMessage(ctx, botMsg); err != nil {
		return nil, err
	}
	if err := s.chats.UpdateLastTurn(ctx, sessionID, reply.TurnID, reply.CandidateID, false); err != nil {
		return nil, err
	}

	s.log.Info("generated reply",
		zap.String("session_id", sessionID),
		zap.String("turn_id", reply.TurnID),
		zap.Int("length", len(reply.Content)),
	)
	return reply, nil
}

// Regenerate asks for another candidate to the latest character turn. The
// new candidate replaces the transcript entry and is promoted to primary on
// the next Reply.
func (s *Service) Regenerate(ctx context.Context, sessionID string, onUpdate cai.CandidateHandler) (*Reply, error) {
	defer s.lockSession(sessionID)()

	session, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.LastTurnID == "" {
		return nil, ErrNothingToRegenerate
	}

	var resp *cai.Message
	err = s.client.Connect(ctx, func(conn *cai.Conn) error {
		resp, err = conn.NextCandidate(ctx, session.CharacterID, session.ChatID, session.LastTurnID, &cai.TurnOptions{OnUpdate: onUpdate})
		return err
	})
	if err != nil {
		return nil, err
	}

	reply := newReply(sessionID, resp)
	if reply.TurnID == "" {
		reply.TurnID = session.LastTurnID
	}
	if _, err := s.chats.ReplaceCandidate(ctx, sessionID, reply.TurnID, reply.CandidateID, reply.Content); err != nil {
		return nil, err
	}
	if err := s.chats.UpdateLastTurn(ctx, sessionID, reply.TurnID, reply.CandidateID, true); err != nil {
		return nil, err
	}

	s.log.Info("regenerated candidate",
		zap.String("session_id", sessionID),
		zap.String("turn_id", reply.TurnID),
		zap.String("candidate_id", reply.CandidateID),
	)
	return reply, nil
}

// DeleteTurns removes turns from the chat and from the transcript. It returns
// the number of transcript entries removed.
func (s *Service) DeleteTurns(ctx context.Context, sessionID string, turnIDs []string) (int, error) {
	if len(turnIDs) == 0 {
		return 0, ErrNoTurns
	}

	defer s.lockSession(sessionID)()

	session, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	err = s.client.Connect(ctx, func(conn *cai.Conn) error {
		_, err := conn.DeleteTurns(ctx, session.ChatID, turnIDs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.chats.RemoveTurns(ctx, sessionID, turnIDs)
}

func newReply(sessionID string, msg *cai.Message) *Reply {
	turnID, candidateID := turnIdentity(msg)
	return &Reply{
		SessionID:   sessionID,
		TurnID:      turnID,
		CandidateID: candidateID,
		Content:     msg.Text(),
		Message:     msg,
	}
}

func turnIdentity(msg *cai.Message) (turnID, candidateID string) {
	if msg == nil || msg.Turn == nil {
		return "", ""
	}
	turnID = msg.Turn.TurnKey.TurnID
	if c, ok := msg.Turn.Primary(); ok {
		candidateID = c.CandidateID
	}
	if candidateID == "" {
		candidateID = msg.Turn.PrimaryCandidateID
	}
	return turnID, candidateID
}
