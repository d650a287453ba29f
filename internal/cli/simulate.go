package cli

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"price-oracle/internal/app"
)

var (
	simulateBlocks   int
	simulatePrice    string
	simulateAccounts int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the pipeline in memory with a fixed price and throwaway keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return errors.New("--price must be a decimal USD amount")
		}
		cents := price.Shift(2).Truncate(0)
		if cents.IsNegative() || cents.GreaterThan(decimal.NewFromInt(math.MaxUint32)) {
			return errors.New("--price out of range")
		}

		opts := app.SimulateOptions{
			Blocks:   simulateBlocks,
			Price:    uint32(cents.IntPart()),
			Accounts: simulateAccounts,
		}
		return getApp().Simulate(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateBlocks, "blocks", 5, "Number of blocks to produce")
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "100000.00", "Fixed BTC/USD quote returned by the fetcher")
	simulateCmd.Flags().IntVar(&simulateAccounts, "accounts", 1, "Number of throwaway signing accounts")
}
