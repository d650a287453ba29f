package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the sample store from persisted events and compare it with the latest block",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := getApp().Replay(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "height %d: %d events, %d samples, state matches\n", res.Height, res.Events, res.Samples)
		return nil
	},
}
