package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
)

// Export renders persisted block averages as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Chain.BlockTime)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	blocks, err := store.ListBlocksBetween(ctx, from, to)
	if err != nil {
		return err
	}
	blocks = withAverage(blocks)
	if len(blocks) == 0 {
		a.Logger.Info().Msg("no blocks with an average in export window")
		return nil
	}

	downsampled := downsampleBlocks(blocks, opts.MaxPoints)
	a.Logger.Info().Int("total", len(blocks)).Int("exported", len(downsampled)).Msg("exporting averages")

	if opts.CSVPath != "" {
		if err := writeBlocksCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBlocksPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func withAverage(blocks []storage.BlockRecord) []storage.BlockRecord {
	out := blocks[:0:0]
	for _, b := range blocks {
		if b.Average != nil {
			out = append(out, b)
		}
	}
	return out
}

func downsampleBlocks(blocks []storage.BlockRecord, max int) []storage.BlockRecord {
	if max <= 0 || len(blocks) <= max {
		return blocks
	}
	if max == 1 {
		return blocks[len(blocks)-1:]
	}

	result := make([]storage.BlockRecord, 0, max)
	step := float64(len(blocks)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(blocks) {
			idx = len(blocks) - 1
		}
		result = append(result, blocks[idx])
	}
	return result
}

func writeBlocksCSV(path string, blocks []storage.BlockRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"height", "hash", "created_at", "samples", "average_cents", "average_usd"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, b := range blocks {
		record := []string{
			strconv.FormatUint(b.Height, 10),
			b.Hash,
			b.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(len(b.Prices)),
			strconv.FormatUint(uint64(*b.Average), 10),
			runtime.Sample(*b.Average).USD(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBlocksPNG(path string, blocks []storage.BlockRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(blocks))
	average := make([]float64, len(blocks))
	samples := make([]float64, len(blocks))
	for i, b := range blocks {
		x[i] = b.CreatedAt
		average[i] = float64(*b.Average) / 100
		samples[i] = float64(len(b.Prices))
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Average (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Samples",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "BTC/USD average",
				XValues: x,
				YValues: average,
			},
			chart.TimeSeries{
				Name:    "Samples",
				XValues: x,
				YValues: samples,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
