package cai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zhouzirui/characterai-go/internal/caitest"
)

func dialTest(t *testing.T, srv *caitest.Server, cfg Config) *Conn {
	t.Helper()
	cfg.BaseURL = srv.BaseURL()
	cfg.NeoURL = srv.NeoURL()
	cfg.WebSocketURL = srv.WebSocketURL()
	if cfg.Token == "" {
		cfg.Token = "tok"
	}
	conn, err := NewClient(cfg).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := marshal(v)
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	return data
}

func TestNextCandidateSkipsHumanAndPartialFrames(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	finals := make(chan []byte, 1)
	srv.OnCommand(func(cmd caitest.Command) []any {
		final := mustMarshal(t, caitest.TurnFrame(cmd.RequestID, "chat1", "turn1", "char1", "Hello there", true))
		finals <- final
		return []any{
			caitest.TurnFrame(cmd.RequestID, "chat1", "turn0", "12345", "hi", true),
			caitest.TurnFrame(cmd.RequestID, "chat1", "turn1", "char1", "Hello", false),
			final,
		}
	})

	conn := dialTest(t, srv, Config{})
	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "Hello there" {
		t.Fatalf("expected final text, got %q", reply.Text())
	}
	final := <-finals
	if string(reply.Raw) != string(final) {
		t.Fatalf("expected raw frame unchanged\n got: %s\nwant: %s", reply.Raw, final)
	}

	cmds := srv.Commands()
	if len(cmds) != 1 || cmds[0].Command != "generate_turn_candidate" {
		t.Fatalf("unexpected commands %+v", cmds)
	}
	key, _ := cmds[0].Payload["turn_key"].(map[string]any)
	if cmds[0].Payload["character_id"] != "char1" || key["chat_id"] != "chat1" || key["turn_id"] != "turn0" {
		t.Fatalf("unexpected payload %v", cmds[0].Payload)
	}
}

func TestNextCandidateSkipsCandidateWithoutFinalFlag(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		partial := caitest.TurnFrame(cmd.RequestID, "chat1", "turn1", "char1", "Hel", false)
		turn := partial["turn"].(map[string]any)
		delete(turn["candidates"].([]any)[0].(map[string]any), "is_final")
		return []any{
			partial,
			caitest.TurnFrame(cmd.RequestID, "chat1", "turn1", "char1", "Hello", true),
		}
	})

	conn := dialTest(t, srv, Config{})
	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "Hello" {
		t.Fatalf("expected final candidate, got %q", reply.Text())
	}
}

func TestGenerateFrameWithoutTurnIsServerError(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{caitest.ErrorFrame(cmd.RequestID, "chat does not exist")}
	})

	conn := dialTest(t, srv, Config{})
	_, err := conn.SendMessage(context.Background(), "char1", "chat1", "hi", Author{AuthorID: "12345"}, nil)

	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if srvErr.Kind != KindComment || srvErr.Message != "chat does not exist" {
		t.Fatalf("unexpected server error %+v", srvErr)
	}
}

func TestSendMessageBuildsTurn(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return caitest.Reply(cmd.RequestID, "chat1", "turn9", "char1", "12345", "Hi", " there")
	})

	conn := dialTest(t, srv, Config{})
	var updates []string
	reply, err := conn.SendMessage(context.Background(), "char1", "chat1", "hello",
		Author{AuthorID: "12345", IsHuman: true, Name: "alice"},
		&SendOptions{
			CustomID:    "custom-turn",
			TurnID:      "turn8",
			CandidateID: "cand8",
			OnUpdate:    func(m *Message) { updates = append(updates, m.Text()) },
		})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if reply.Text() != "Hi there" {
		t.Fatalf("unexpected reply %q", reply.Text())
	}
	if len(updates) != 2 || updates[0] != "Hi" || updates[1] != "Hi there" {
		t.Fatalf("unexpected updates %v", updates)
	}

	cmd := srv.Commands()[0]
	if cmd.Command != "create_and_generate_turn" {
		t.Fatalf("unexpected command %s", cmd.Command)
	}
	turn, _ := cmd.Payload["turn"].(map[string]any)
	key, _ := turn["turn_key"].(map[string]any)
	author, _ := turn["author"].(map[string]any)
	candidates, _ := turn["candidates"].([]any)
	if key["chat_id"] != "chat1" || key["turn_id"] != "custom-turn" {
		t.Fatalf("unexpected turn key %v", key)
	}
	if author["author_id"] != "12345" || author["is_human"] != true || author["name"] != "alice" {
		t.Fatalf("unexpected author %v", author)
	}
	if len(candidates) != 1 || candidates[0].(map[string]any)["raw_content"] != "hello" {
		t.Fatalf("unexpected candidates %v", candidates)
	}

	upd := cmd.UpdatePrimaryCandidate
	updKey, _ := upd["turn_key"].(map[string]any)
	if upd["candidate_id"] != "cand8" || updKey["turn_id"] != "turn8" || updKey["chat_id"] != "chat1" {
		t.Fatalf("unexpected update_primary_candidate %v", upd)
	}
}

func TestSendMessageWithoutPrimaryUpdate(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return caitest.Reply(cmd.RequestID, "chat1", "turn1", "char1", "", "ok")
	})

	conn := dialTest(t, srv, Config{})
	_, err := conn.SendMessage(context.Background(), "char1", "chat1", "hello", Author{AuthorID: "1"}, &SendOptions{TurnID: "turn0"})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	cmd := srv.Commands()[0]
	if cmd.UpdatePrimaryCandidate != nil {
		t.Fatalf("expected no update_primary_candidate, got %v", cmd.UpdatePrimaryCandidate)
	}
	key := cmd.Payload["turn"].(map[string]any)["turn_key"].(map[string]any)
	if _, ok := key["turn_id"]; ok {
		t.Fatalf("expected turn_id omitted, got %v", key)
	}
}

func TestNewChatReturnsAckAndGreeting(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{
			caitest.ChatFrame(cmd.RequestID, "chat1", "char1"),
			caitest.TurnFrame(cmd.RequestID, "chat1", "turn0", "char1", "Welcome!", true),
		}
	})

	conn := dialTest(t, srv, Config{})
	ack, greeting, err := conn.NewChat(context.Background(), "char1", "chat1", "12345", true)
	if err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if len(ack.Chat) == 0 {
		t.Fatal("expected chat in acknowledgement")
	}
	if greeting == nil || greeting.Text() != "Welcome!" {
		t.Fatalf("unexpected greeting %+v", greeting)
	}

	cmd := srv.Commands()[0]
	chat, _ := cmd.Payload["chat"].(map[string]any)
	if cmd.Command != "create_chat" || cmd.Payload["with_greeting"] != true {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if chat["chat_id"] != "chat1" || chat["creator_id"] != "12345" ||
		chat["visibility"] != "VISIBILITY_PRIVATE" || chat["type"] != "TYPE_ONE_ON_ONE" {
		t.Fatalf("unexpected chat payload %v", chat)
	}
}

func TestNewChatWithoutGreeting(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{caitest.ChatFrame(cmd.RequestID, "chat1", "char1")}
	})

	conn := dialTest(t, srv, Config{})
	ack, greeting, err := conn.NewChat(context.Background(), "char1", "chat1", "12345", false)
	if err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if ack == nil || greeting != nil {
		t.Fatalf("expected ack only, got ack=%v greeting=%v", ack, greeting)
	}
}

func TestNewChatWithoutChatFieldIsServerError(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{caitest.ErrorFrame(cmd.RequestID, "creator mismatch")}
	})

	conn := dialTest(t, srv, Config{})
	_, _, err := conn.NewChat(context.Background(), "char1", "chat1", "12345", true)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) || srvErr.Message != "creator mismatch" {
		t.Fatalf("expected ServerError with comment, got %v", err)
	}
}

func TestDeleteTurnsReturnsResponseFrame(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	resps := make(chan []byte, 1)
	srv.OnCommand(func(cmd caitest.Command) []any {
		resp := mustMarshal(t, map[string]any{
			"command":    "remove_turns_response",
			"request_id": cmd.RequestID,
			"chat_id":    "chat1",
		})
		resps <- resp
		return []any{resp}
	})

	conn := dialTest(t, srv, Config{})
	msg, err := conn.DeleteTurns(context.Background(), "chat1", []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("DeleteTurns err: %v", err)
	}
	if resp := <-resps; string(msg.Raw) != string(resp) {
		t.Fatalf("expected frame verbatim, got %s", msg.Raw)
	}

	cmd := srv.Commands()[0]
	ids, _ := cmd.Payload["turn_ids"].([]any)
	if cmd.Command != "remove_turns" || cmd.Payload["chat_id"] != "chat1" || len(ids) != 2 || ids[1] != "t2" {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestFramesForOtherRequestsAreSkipped(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{
			caitest.TurnFrame("someone-else", "chat1", "turnX", "char1", "stale", true),
			caitest.TurnFrame(cmd.RequestID, "chat1", "turn1", "char1", "fresh", true),
		}
	})

	conn := dialTest(t, srv, Config{})
	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "fresh" {
		t.Fatalf("expected frame for own request, got %q", reply.Text())
	}
}

// bareTurn is a turn frame as the server sends it outside any request,
// without a request_id.
func bareTurn(turnID, authorID, text string, final bool) string {
	return fmt.Sprintf(`{"command":"update_turn","turn":{"turn_key":{"chat_id":"chat1","turn_id":%q},`+
		`"author":{"author_id":%q},"candidates":[{"candidate_id":"%s-c0","raw_content":%q,"is_final":%t}]}}`,
		turnID, authorID, turnID, text, final)
}

// waitQueued blocks until the reader has queued at least one frame.
func waitQueued(t *testing.T, conn *Conn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(conn.incoming) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frame queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFramesWithoutRequestIDUseTurnFilter(t *testing.T) {
	final := bareTurn("turn1", "char1", "Hello", true)
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		return []any{
			bareTurn("turn0", "12345", "hi", true),
			bareTurn("turn1", "char1", "Hel", false),
			final,
		}
	})

	conn := dialTest(t, srv, Config{})
	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "Hello" {
		t.Fatalf("expected final text, got %q", reply.Text())
	}
	if string(reply.Raw) != final {
		t.Fatalf("expected raw frame unchanged\n got: %s\nwant: %s", reply.Raw, final)
	}
}

func TestAbandonedExchangeFramesAreDiscarded(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		key, _ := cmd.Payload["turn_key"].(map[string]any)
		if key["turn_id"] == "old" {
			time.Sleep(150 * time.Millisecond)
			return []any{bareTurn("old-reply", "char1", "stale", true)}
		}
		return []any{bareTurn("new-reply", "char1", "fresh", true)}
	})

	conn := dialTest(t, srv, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := conn.NextCandidate(ctx, "char1", "chat1", "old", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	waitQueued(t, conn)

	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "new", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "fresh" {
		t.Fatalf("leftover frame leaked into next exchange: %q", reply.Text())
	}
}

func TestNewChatWithoutGreetingIgnoresExtraFrame(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	srv.OnCommand(func(cmd caitest.Command) []any {
		if cmd.Command == "create_chat" {
			return []any{
				caitest.ChatFrame(cmd.RequestID, "chat1", "char1"),
				bareTurn("greet", "char1", "unrequested", true),
			}
		}
		return []any{bareTurn("turn1", "char1", "fresh", true)}
	})

	conn := dialTest(t, srv, Config{})
	_, greeting, err := conn.NewChat(context.Background(), "char1", "chat1", "12345", false)
	if err != nil {
		t.Fatalf("NewChat err: %v", err)
	}
	if greeting != nil {
		t.Fatalf("expected no greeting, got %q", greeting.Text())
	}
	waitQueued(t, conn)

	reply, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if err != nil {
		t.Fatalf("NextCandidate err: %v", err)
	}
	if reply.Text() != "fresh" {
		t.Fatalf("expected fresh reply, got %q", reply.Text())
	}
}

func TestSendOnBrokenSocketFails(t *testing.T) {
	srv := caitest.NewServer(t, "tok")

	conn := dialTest(t, srv, Config{})
	_ = conn.ws.Close()

	if _, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil); err == nil {
		t.Fatal("expected error on a broken socket")
	}
}

func TestTurnTimeoutBoundsExchange(t *testing.T) {
	srv := caitest.NewServer(t, "tok")

	conn := dialTest(t, srv, Config{TurnTimeout: 50 * time.Millisecond})
	_, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallerDeadlineWins(t *testing.T) {
	srv := caitest.NewServer(t, "tok")

	conn := dialTest(t, srv, Config{TurnTimeout: -1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := conn.NextCandidate(ctx, "char1", "chat1", "turn0", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDialRejectedHandshakeIsAuthError(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	client := newTestClient(t, srv, "wrong")

	conn, err := client.Dial(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if conn != nil {
		t.Fatal("expected no connection")
	}

	err = client.Connect(context.Background(), func(*Conn) error {
		t.Fatal("callback must not run")
		return nil
	})
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError from Connect, got %v", err)
	}

	conn, err = client.Dial(context.Background(), WithToken("tok"))
	if err != nil {
		t.Fatalf("Dial with override err: %v", err)
	}
	_ = conn.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	conn := dialTest(t, srv, Config{})

	first := conn.Close()
	if err := conn.Close(); err != first {
		t.Fatalf("second Close returned %v, first %v", err, first)
	}

	var nilConn *Conn
	if err := nilConn.Close(); err != nil {
		t.Fatalf("nil Close err: %v", err)
	}

	_, err := conn.NextCandidate(context.Background(), "char1", "chat1", "turn0", nil)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestConnectClosesAfterCallback(t *testing.T) {
	srv := caitest.NewServer(t, "tok")
	client := newTestClient(t, srv, "tok")

	var held *Conn
	sentinel := errors.New("boom")
	err := client.Connect(context.Background(), func(c *Conn) error {
		held = c
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := held.DeleteTurns(context.Background(), "chat1", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Connect returned, got %v", err)
	}
}
