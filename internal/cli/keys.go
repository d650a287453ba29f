package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage local signing keys",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a signing key of the configured key type",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := getApp().NewKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts that can sign price submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := getApp().ListKeys()
		if err != nil {
			return err
		}
		if len(addrs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no keys found")
			return nil
		}
		for _, addr := range addrs {
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
		}
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysNewCmd)
	keysCmd.AddCommand(keysListCmd)
}
