package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-oracle/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "oraclenode %s\n", version.String())
	},
}
