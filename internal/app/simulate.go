package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"price-oracle/internal/chain"
	"price-oracle/internal/keystore"
	"price-oracle/internal/offchain"
	"price-oracle/internal/runtime"
	"price-oracle/internal/txpool"
)

// Simulate drives the full pipeline in memory with a fixed quote and
// throwaway keys, printing the state after every block.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions, out io.Writer) error {
	if opts.Blocks <= 0 {
		return errors.New("blocks must be greater than zero")
	}
	if opts.Accounts < 0 {
		return errors.New("accounts cannot be negative")
	}

	keyType, err := a.keyType()
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "oraclenode-sim-")
	if err != nil {
		return fmt.Errorf("create temp keystore: %w", err)
	}
	defer os.RemoveAll(dir)

	keys, err := keystore.Open(keystore.Options{Dir: dir, KeyType: keyType, LightScrypt: true}, a.Logger)
	if err != nil {
		return err
	}
	for i := 0; i < opts.Accounts; i++ {
		if _, err := keys.NewAccount(); err != nil {
			return err
		}
	}

	pool := txpool.New(a.Config.TxPool.MaxSize, a.Logger)
	node := chain.New(chain.Options{KeyType: keyType, MaxTxsPerBlock: a.Config.Chain.MaxTxsPerBlock}, pool, nil, nil, a.Logger)
	submitter := offchain.NewSubmitter(keyType, keys, pool, a.Logger)
	worker := offchain.NewWorker(fixedPrice(opts.Price), submitter, node, 1, a.Logger)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Height\tApplied\tRejected\tSamples\tAverage (USD)\tPipeline\tSubmitted")
	for i := 0; i < opts.Blocks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, err := node.ProduceBlock(ctx)
		if err != nil {
			return err
		}
		outcome, _ := worker.Process(ctx, block.Head)

		avg := "-"
		if block.HasAverage {
			avg = block.Average.USD()
		}
		fmt.Fprintf(writer, "%d\t%d\t%d\t%d\t%s\t%s\t%d\n",
			block.Height,
			len(block.Results)-block.Rejected(),
			block.Rejected(),
			len(block.Prices),
			avg,
			outcome.Terminal(),
			len(outcome.Submitted),
		)
	}
	return writer.Flush()
}

type fixedPrice runtime.Sample

func (f fixedPrice) FetchPrice(context.Context) (runtime.Sample, error) {
	return runtime.Sample(f), nil
}

var _ offchain.PriceFetcher = fixedPrice(0)
