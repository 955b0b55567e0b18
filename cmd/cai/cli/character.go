package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/characterai-go/internal/model/character"
)

func newCharacterCmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "character",
		Aliases: []string{"char"},
		Short:   "Look up characters",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "info <character-id>",
			Short: "Show a character",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := root.client.Character.Info(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("could not fetch character: %w", err)
				}
				p := root.printer(cmd)
				if p.json {
					return p.raw(resp)
				}

				c, err := character.FromPayload(resp)
				if err != nil {
					return err
				}
				p.field("id", c.ID)
				p.field("name", c.Name)
				p.field("title", c.Title)
				p.field("creator", c.Creator)
				p.field("greeting", c.Greeting)
				p.field("description", c.Description)
				if c.Interactions > 0 {
					p.field("interactions", fmt.Sprint(c.Interactions))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search characters by name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := root.client.Character.Search(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				p := root.printer(cmd)
				if p.json {
					return p.raw(resp)
				}

				list, err := character.ListFromPayload(resp, "characters")
				if err != nil {
					return err
				}
				if len(list) == 0 {
					p.line("no characters found")
					return nil
				}
				for _, c := range list {
					p.speaker(c.Name)
					p.line("%s", c.ID)
				}
				return nil
			},
		},
	)
	return cmd
}
