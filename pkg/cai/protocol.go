package cai

import (
	"context"

	"go.uber.org/zap"
)

// CandidateHandler observes bot-authored frames while an exchange waits for
// the final candidate, including the final frame itself.
type CandidateHandler func(*Message)

// TurnOptions are the optional fields of Conn.NextCandidate.
type TurnOptions struct {
	OnUpdate CandidateHandler
}

// SendOptions are the optional fields of Conn.SendMessage.
type SendOptions struct {
	// CustomID becomes the turn id of the new human turn.
	CustomID string

	// TurnID and CandidateID, when both set, make CandidateID the primary
	// candidate of TurnID before the new turn is generated.
	TurnID      string
	CandidateID string

	OnUpdate CandidateHandler
}

// NextCandidate asks the character for another candidate to the turn
// parentTurnID and waits for it to finish.
func (c *Conn) NextCandidate(ctx context.Context, characterID, chatID, parentTurnID string, opts *TurnOptions) (*Message, error) {
	c.log.Debug("sending next message request",
		zap.String("character_id", characterID),
		zap.String("chat_id", chatID),
		zap.String("parent_turn_id", parentTurnID),
	)

	var onUpdate CandidateHandler
	if opts != nil {
		onUpdate = opts.OnUpdate
	}

	cmd := command{
		Command: commandGenerateTurnCandidate,
		Payload: generateTurnCandidatePayload{
			CharacterID: characterID,
			TurnKey:     TurnKey{ChatID: chatID, TurnID: parentTurnID},
		},
	}
	return c.generate(ctx, cmd, onUpdate)
}

// SendMessage posts text as author and waits for the character's final reply.
func (c *Conn) SendMessage(ctx context.Context, characterID, chatID, text string, author Author, opts *SendOptions) (*Message, error) {
	c.log.Debug("sending message",
		zap.String("character_id", characterID),
		zap.String("chat_id", chatID),
		zap.Int("length", len(text)),
	)

	var o SendOptions
	if opts != nil {
		o = *opts
	}

	cmd := command{
		Command: commandCreateAndGenerateTurn,
		Payload: createAndGenerateTurnPayload{
			CharacterID: characterID,
			Turn: outgoingTurn{
				TurnKey:    TurnKey{ChatID: chatID, TurnID: o.CustomID},
				Author:     author,
				Candidates: []outgoingCandidate{{RawContent: text}},
			},
		},
	}
	if o.TurnID != "" && o.CandidateID != "" {
		cmd.UpdatePrimaryCandidate = &updatePrimaryCandidate{
			CandidateID: o.CandidateID,
			TurnKey:     TurnKey{ChatID: chatID, TurnID: o.TurnID},
		}
	}
	return c.generate(ctx, cmd, o.OnUpdate)
}

// NewChat creates a one-on-one private chat. The first response must
// acknowledge the chat; with a greeting requested, the following frame is
// returned as greeting. Without one, only the acknowledgement is read and
// greeting is nil: a second frame the server sends anyway is left queued and
// dropped before the next exchange on the connection.
func (c *Conn) NewChat(ctx context.Context, characterID, chatID, creatorID string, withGreeting bool) (ack, greeting *Message, err error) {
	c.log.Debug("creating new chat",
		zap.String("character_id", characterID),
		zap.String("chat_id", chatID),
		zap.String("creator_id", creatorID),
	)

	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	cmd := command{
		Command:   commandCreateChat,
		RequestID: newRequestID(),
		Payload: createChatPayload{
			Chat: chatSpec{
				ChatID:      chatID,
				CreatorID:   creatorID,
				Visibility:  chatVisibilityPrivate,
				CharacterID: characterID,
				Type:        chatTypeOneOnOne,
			},
			WithGreeting: withGreeting,
		},
	}
	if err := c.begin(ctx, cmd); err != nil {
		return nil, nil, err
	}

	ack, err = c.recvFor(ctx, cmd.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if len(ack.Chat) == 0 || string(ack.Chat) == "null" {
		return nil, nil, ack.serverError("chat")
	}
	if !withGreeting {
		return ack, nil, nil
	}

	greeting, err = c.recvFor(ctx, cmd.RequestID)
	if err != nil {
		return nil, nil, err
	}
	c.log.Debug("received new chat response", zap.String("chat_id", chatID))
	return ack, greeting, nil
}

// DeleteTurns removes turns from a chat and returns the server's response
// frame unfiltered.
func (c *Conn) DeleteTurns(ctx context.Context, chatID string, turnIDs []string) (*Message, error) {
	c.log.Debug("deleting turns", zap.String("chat_id", chatID), zap.Strings("turn_ids", turnIDs))

	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	if turnIDs == nil {
		turnIDs = []string{}
	}
	cmd := command{
		Command:   commandRemoveTurns,
		RequestID: newRequestID(),
		Payload:   removeTurnsPayload{ChatID: chatID, TurnIDs: turnIDs},
	}
	if err := c.begin(ctx, cmd); err != nil {
		return nil, err
	}
	return c.recvFor(ctx, cmd.RequestID)
}

func (c *Conn) begin(ctx context.Context, cmd command) error {
	if err := c.discardStale(); err != nil {
		return err
	}
	return c.send(ctx, cmd)
}

// generate sends cmd and waits for a finished candidate authored by the
// character. Human turns (the echo of our own message) and partial candidates
// are skipped; a frame without a turn ends the exchange with a ServerError.
func (c *Conn) generate(ctx context.Context, cmd command, onUpdate CandidateHandler) (*Message, error) {
	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.boundContext(ctx)
	defer cancel()

	cmd.RequestID = newRequestID()
	if err := c.begin(ctx, cmd); err != nil {
		return nil, err
	}

	for {
		msg, err := c.recvFor(ctx, cmd.RequestID)
		if err != nil {
			return nil, err
		}
		if msg.Turn == nil {
			return nil, msg.serverError("turn")
		}
		if msg.Turn.Author.Human() {
			continue
		}
		if onUpdate != nil {
			onUpdate(msg)
		}
		if msg.Final() {
			c.log.Debug("received final candidate",
				zap.String("chat_id", msg.Turn.TurnKey.ChatID),
				zap.String("turn_id", msg.Turn.TurnKey.TurnID),
			)
			return msg, nil
		}
	}
}
