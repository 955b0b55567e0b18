package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type userInfo struct {
	User struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		Name string `json:"name"`
	} `json:"user"`
}

func newUserCmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect the authenticated account",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the account behind the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client.User.Info(cmd.Context())
			if err != nil {
				return fmt.Errorf("could not fetch user info: %w", err)
			}
			p := root.printer(cmd)
			if p.json {
				return p.raw(resp)
			}

			var info userInfo
			if err := resp.Decode(&info); err != nil {
				return err
			}
			p.field("username", info.User.User.Username)
			p.field("name", info.User.Name)
			p.field("id", fmt.Sprint(info.User.User.ID))
			return nil
		},
	})
	return cmd
}
