package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
)

// Show prints recent persisted blocks, or recent price events.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show blocks")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Events {
		evs, err := store.ListRecentEvents(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return writeEvents(os.Stdout, evs)
	}

	blocks, err := store.ListRecentBlocks(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return writeBlocks(os.Stdout, blocks)
}

func writeBlocks(out io.Writer, blocks []storage.BlockRecord) error {
	if len(blocks) == 0 {
		fmt.Fprintln(out, "no blocks found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Height\tHash\tTxs\tRejected\tSamples\tAverage (USD)\tTime (UTC)")
	for _, b := range blocks {
		avg := "-"
		if b.Average != nil {
			avg = runtime.Sample(*b.Average).USD()
		}
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			b.Height,
			shortHash(b.Hash),
			b.TxCount,
			b.Rejected,
			len(b.Prices),
			avg,
			b.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

func writeEvents(out io.Writer, evs []storage.PriceEvent) error {
	if len(evs) == 0 {
		fmt.Fprintln(out, "no events found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Height\tIndex\tPrice (USD)\tOrigin\tTime (UTC)")
	for _, ev := range evs {
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\t%s\n",
			ev.Height,
			ev.Index,
			runtime.Sample(ev.Price).USD(),
			ev.Origin,
			ev.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
