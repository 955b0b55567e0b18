// Package cli implements the cai command line client.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/internal/config"
	"github.com/zhouzirui/characterai-go/internal/model/character"
	"github.com/zhouzirui/characterai-go/internal/service/ai"
	chatservice "github.com/zhouzirui/characterai-go/internal/service/chat"
	"github.com/zhouzirui/characterai-go/pkg/cai"
	"github.com/zhouzirui/characterai-go/pkg/logger"
)

const rootLongDesc string = `cai talks to Character.AI from the terminal.

Configuration comes from CAI_* environment variables, an optional .env file
and the TOML file named by CAI_CONFIG. Flags override all of them.

Examples:
  cai ping
  cai character search socrates
  cai chat2 new <character-id>
  cai chat <character-id>`

type rootCommander struct {
	token   string
	plus    bool
	timeout time.Duration
	debug   bool
	json    bool

	cfg    *config.Config
	log    *zap.Logger
	client *cai.Client
	svc    *ai.Service
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:          "cai",
		Short:        "Unofficial Character.AI client",
		Long:         rootLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cmder.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cmder.log != nil {
				_ = cmder.log.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cmder.token, "token", "", "API token (overrides CAI_TOKEN)")
	flags.BoolVar(&cmder.plus, "plus", false, "Use the plus tier host")
	flags.DurationVar(&cmder.timeout, "timeout", 0, "Bound on each chat2 exchange (0 keeps the configured value)")
	flags.BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&cmder.json, "json", false, "Print raw JSON responses")

	cmd.AddCommand(
		newPingCmd(cmder),
		newUserCmd(cmder),
		newCharacterCmd(cmder),
		newChat2Cmd(cmder),
		newChatCmd(cmder),
	)
	return cmd
}

func (c *rootCommander) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if c.token != "" {
		cfg.CAI.Token = c.token
	}
	if c.plus {
		cfg.CAI.Plus = true
	}
	if c.timeout != 0 {
		cfg.CAI.TurnTimeout = c.timeout
	}
	if c.debug {
		cfg.Debug = true
	}
	c.cfg = cfg

	c.log = logger.NewLogger(cfg.Debug)
	c.client = cai.NewClient(cfg.CAI.ClientConfig(c.log.Named("cai")))
	c.svc = ai.NewService(c.client, chatservice.NewService(), character.NewMemoryStore(nil), cfg.CAI, c.log.Named("ai"))
	return nil
}

func (c *rootCommander) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), c.json)
}

// author returns the human author for chat2 commands.
func (c *rootCommander) author(ctx context.Context) (cai.Author, error) {
	id, err := c.svc.CreatorID(ctx)
	if err != nil {
		return cai.Author{}, err
	}
	return cai.Author{AuthorID: id, IsHuman: true, Name: c.cfg.CAI.AuthorName}, nil
}
