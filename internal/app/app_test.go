package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"price-oracle/internal/config"
	"price-oracle/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Chain:    config.ChainConfig{BlockTime: time.Second},
		Keystore: config.KeystoreConfig{Dir: t.TempDir(), KeyType: "btc!", LightScrypt: true},
		Export:   config.ExportConfig{MaxDataPoints: 10},
	}
}

func TestSimulateAppliesSubmissionsNextBlock(t *testing.T) {
	a := NewApp(testConfig(t), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.Simulate(context.Background(), SimulateOptions{Blocks: 3, Price: 10450, Accounts: 2}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, []string{"1", "0", "0", "0", "-", "submitted", "2"}, strings.Fields(lines[1]))
	require.Equal(t, []string{"2", "2", "0", "2", "104.50", "submitted", "2"}, strings.Fields(lines[2]))
	require.Equal(t, []string{"3", "2", "0", "4", "104.50", "submitted", "2"}, strings.Fields(lines[3]))
}

func TestSimulateWithoutAccounts(t *testing.T) {
	a := NewApp(testConfig(t), zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, a.Simulate(context.Background(), SimulateOptions{Blocks: 2, Price: 1}, &out))
	require.Contains(t, out.String(), "no_accounts_available")
}

func TestSimulateRejectsZeroBlocks(t *testing.T) {
	a := NewApp(testConfig(t), zerolog.Nop())
	require.Error(t, a.Simulate(context.Background(), SimulateOptions{}, &bytes.Buffer{}))
}

func TestKeysRoundTrip(t *testing.T) {
	a := NewApp(testConfig(t), zerolog.Nop())

	addr, err := a.NewKey()
	require.NoError(t, err)

	keys, err := a.ListKeys()
	require.NoError(t, err)
	require.Contains(t, keys, addr)
}

func TestReplayEvents(t *testing.T) {
	avg := uint32(150)
	block := storage.BlockRecord{Height: 3, Prices: []uint32{100, 200}, Average: &avg}
	evs := []storage.PriceEvent{{Height: 2, Price: 100}, {Height: 3, Price: 200}}

	res, err := replayEvents(block, evs)
	require.NoError(t, err)
	require.Equal(t, 2, res.Samples)
	require.Equal(t, avg, *res.Average)

	block.Prices = []uint32{100, 201}
	_, err = replayEvents(block, evs)
	require.Error(t, err)
}

func TestReplayEventsEmpty(t *testing.T) {
	res, err := replayEvents(storage.BlockRecord{Height: 1, Prices: []uint32{}}, nil)
	require.NoError(t, err)
	require.Nil(t, res.Average)
}

func TestWriteBlocks(t *testing.T) {
	avg := uint32(10450)
	var out bytes.Buffer
	require.NoError(t, writeBlocks(&out, []storage.BlockRecord{{
		Height:  7,
		Hash:    "0x0123456789abcdef",
		TxCount: 2,
		Prices:  []uint32{10450},
		Average: &avg,
	}}))
	require.Contains(t, out.String(), "104.50")
	require.Contains(t, out.String(), "0x0123456789")

	out.Reset()
	require.NoError(t, writeBlocks(&out, nil))
	require.Equal(t, "no blocks found\n", out.String())
}

func TestDownsampleBlocks(t *testing.T) {
	blocks := make([]storage.BlockRecord, 10)
	for i := range blocks {
		blocks[i].Height = uint64(i)
	}
	got := downsampleBlocks(blocks, 4)
	require.Len(t, got, 4)
	require.Equal(t, uint64(0), got[0].Height)
	require.Equal(t, uint64(9), got[3].Height)
	require.Len(t, downsampleBlocks(blocks, 20), 10)
}
