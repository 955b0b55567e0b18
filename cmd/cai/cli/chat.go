package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const chatLongDesc string = `Start an interactive chat with a character.

Each line you type is sent as a message and the reply is printed as it is
generated. Lines starting with a slash are commands:

  /regen   ask for another reply to your last message
  /quit    leave the chat`

type chatCommander struct {
	root     *rootCommander
	greeting bool
}

func newChatCmd(root *rootCommander) *cobra.Command {
	cmder := &chatCommander{root: root}
	cmd := &cobra.Command{
		Use:   "chat <character-id>",
		Short: "Chat with a character interactively",
		Long:  chatLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&cmder.greeting, "greeting", true, "Show the character's greeting")
	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, characterID string) error {
	p := newPrinter(cmd.OutOrStdout(), false)
	svc := c.root.svc

	name := characterID
	if ch, err := svc.ResolveCharacter(ctx, characterID); err == nil && ch.Name != "" {
		name = ch.Name
	}

	session, greeting, err := svc.StartSession(ctx, characterID, c.greeting)
	if err != nil {
		return fmt.Errorf("could not start chat: %w", err)
	}
	c.root.log.Debug("chat started", zap.String("session_id", session.ID), zap.String("chat_id", session.ChatID))
	if greeting != nil {
		p.speaker(name)
		p.line("%s", greeting.Content)
	}

	in := cmd.InOrStdin()
	interactive := isTerminalReader(in)
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(p.w, p.style(labelStyle, "> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/regen":
			reply, err := svc.Regenerate(ctx, session.ID, nil)
			if err != nil {
				p.warn("regenerate failed: %v", err)
				continue
			}
			p.speaker(name)
			p.line("%s", reply.Content)
		case strings.HasPrefix(line, "/"):
			p.warn("unknown command %s", line)
		default:
			if err := c.stream(ctx, p, name, session.ID, line); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.warn("send failed: %v", err)
			}
		}
	}
}

func (c *chatCommander) stream(ctx context.Context, p *printer, name, sessionID, text string) error {
	stream, err := c.root.svc.ChatModel(sessionID).Stream(ctx, []*schema.Message{schema.UserMessage(text)})
	if err != nil {
		return err
	}
	defer stream.Close()

	p.speaker(name)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			p.line("")
			return nil
		}
		if err != nil {
			p.line("")
			return err
		}
		if chunk != nil && chunk.Content != "" {
			fmt.Fprint(p.w, chunk.Content)
		}
	}
}

func isTerminalReader(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
