package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the current BTC/USD price once and print it in cents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cents, err := getApp().Fetch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cents)
		return nil
	},
}
