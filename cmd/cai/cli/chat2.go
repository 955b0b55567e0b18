package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

func newChat2Cmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat2",
		Short: "Drive chat2 conversations turn by turn",
	}
	cmd.AddCommand(
		newChat2NewCmd(root),
		newChat2SendCmd(root),
		newChat2NextCmd(root),
		newChat2HistoryCmd(root),
		newChat2DeleteCmd(root),
	)
	return cmd
}

// printFrame writes a socket frame verbatim in JSON mode, otherwise the text
// of its turn attributed to the author.
func (c *rootCommander) printFrame(cmd *cobra.Command, msg *cai.Message) error {
	p := c.printer(cmd)
	if p.json {
		var v any
		if err := sonic.ConfigStd.Unmarshal(msg.Raw, &v); err != nil {
			return err
		}
		return p.raw(v)
	}
	if msg.Turn == nil {
		return nil
	}
	p.speaker(authorName(msg.Turn.Author))
	p.line("%s", msg.Text())
	p.field("turn", msg.Turn.TurnKey.TurnID)
	return nil
}

func (c *rootCommander) connect(ctx context.Context, fn func(*cai.Conn) error) error {
	return c.client.Connect(ctx, fn)
}

type chat2NewCommander struct {
	root     *rootCommander
	greeting bool
}

func newChat2NewCmd(root *rootCommander) *cobra.Command {
	cmder := &chat2NewCommander{root: root}
	cmd := &cobra.Command{
		Use:   "new <character-id>",
		Short: "Create a chat with a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&cmder.greeting, "greeting", true, "Ask the character for its greeting")
	return cmd
}

func (c *chat2NewCommander) run(ctx context.Context, cmd *cobra.Command, characterID string) error {
	creatorID, err := c.root.svc.CreatorID(ctx)
	if err != nil {
		return err
	}

	chatID := cai.NewChatID()
	return c.root.connect(ctx, func(conn *cai.Conn) error {
		_, greeting, err := conn.NewChat(ctx, characterID, chatID, creatorID, c.greeting)
		if err != nil {
			return fmt.Errorf("could not create chat: %w", err)
		}
		p := c.root.printer(cmd)
		if !p.json {
			p.field("chat", chatID)
		}
		if greeting != nil {
			return c.root.printFrame(cmd, greeting)
		}
		return nil
	})
}

type chat2SendCommander struct {
	root    *rootCommander
	primary string
}

func newChat2SendCmd(root *rootCommander) *cobra.Command {
	cmder := &chat2SendCommander{root: root}
	cmd := &cobra.Command{
		Use:   "send <character-id> <chat-id> <text>",
		Short: "Send a message and print the reply",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0], args[1], args[2])
		},
	}
	cmd.Flags().StringVar(&cmder.primary, "primary", "", "Make candidate <turn-id>:<candidate-id> primary first")
	return cmd
}

func (c *chat2SendCommander) run(ctx context.Context, cmd *cobra.Command, characterID, chatID, text string) error {
	author, err := c.root.author(ctx)
	if err != nil {
		return err
	}

	opts := &cai.SendOptions{CustomID: cai.NewTurnID()}
	if c.primary != "" {
		turnID, candidateID, ok := cutPair(c.primary)
		if !ok {
			return fmt.Errorf("--primary wants <turn-id>:<candidate-id>, got %q", c.primary)
		}
		opts.TurnID, opts.CandidateID = turnID, candidateID
	}

	return c.root.connect(ctx, func(conn *cai.Conn) error {
		msg, err := conn.SendMessage(ctx, characterID, chatID, text, author, opts)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		return c.root.printFrame(cmd, msg)
	})
}

func newChat2NextCmd(root *rootCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "next <character-id> <chat-id> <turn-id>",
		Short: "Generate another candidate for a turn",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return root.connect(ctx, func(conn *cai.Conn) error {
				msg, err := conn.NextCandidate(ctx, args[0], args[1], args[2], nil)
				if err != nil {
					return fmt.Errorf("next candidate failed: %w", err)
				}
				if err := root.printFrame(cmd, msg); err != nil {
					return err
				}
				if c, ok := msg.Turn.Primary(); ok && !root.json {
					root.printer(cmd).field("candidate", c.CandidateID)
				}
				return nil
			})
		},
	}
}

func newChat2HistoryCmd(root *rootCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "history <chat-id>",
		Short: "Print the turns of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client.Chat2.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("could not fetch history: %w", err)
			}
			p := root.printer(cmd)
			if p.json {
				return p.raw(resp)
			}

			var history struct {
				Turns []cai.Turn `json:"turns"`
			}
			if err := resp.Decode(&history); err != nil {
				return err
			}
			// newest first on the wire
			for i := len(history.Turns) - 1; i >= 0; i-- {
				turn := history.Turns[i]
				c, _ := turn.Primary()
				p.speaker(authorName(turn.Author))
				p.line("%s", c.RawContent)
			}
			return nil
		},
	}
}

func newChat2DeleteCmd(root *rootCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chat-id> <turn-id>...",
		Short: "Remove turns from a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return root.connect(ctx, func(conn *cai.Conn) error {
				msg, err := conn.DeleteTurns(ctx, args[0], args[1:])
				if err != nil {
					return fmt.Errorf("delete failed: %w", err)
				}
				if root.json {
					return root.printFrame(cmd, msg)
				}
				root.printer(cmd).line("removed %d turns", len(args)-1)
				return nil
			})
		},
	}
}

func authorName(a cai.Author) string {
	if a.Name != "" {
		return a.Name
	}
	return a.AuthorID
}

func cutPair(s string) (string, string, bool) {
	a, b, ok := strings.Cut(s, ":")
	return a, b, ok && a != "" && b != ""
}
