package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCmd(root *rootCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the neo host is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client.Ping(cmd.Context())
			if err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			p := root.printer(cmd)
			if p.json {
				return p.raw(resp)
			}
			p.line("pong")
			return nil
		},
	}
}
