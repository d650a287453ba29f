package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"price-oracle/internal/chain"
	"price-oracle/internal/events"
	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
)

type fakeChain struct {
	head    chain.Head
	prices  []runtime.Sample
	pending int
}

func (f fakeChain) Head() chain.Head          { return f.head }
func (f fakeChain) Prices() []runtime.Sample { return f.prices }
func (f fakeChain) PendingTxs() int          { return f.pending }

func (f fakeChain) Average() (runtime.Sample, bool) {
	return runtime.Average(f.prices)
}

type fakeEvents struct {
	events []storage.PriceEvent
	err    error
	limit  int
}

func (f *fakeEvents) ListRecentEvents(_ context.Context, limit int) ([]storage.PriceEvent, error) {
	f.limit = limit
	return f.events, f.err
}

func (f *fakeEvents) ListEventsThrough(context.Context, uint64) ([]storage.PriceEvent, error) {
	return f.events, f.err
}

func getJSON(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	return rec.Code
}

func TestPricesAndAverage(t *testing.T) {
	c := fakeChain{head: chain.Head{Height: 4}, prices: []runtime.Sample{10000, 10901}}
	s := NewServer(Options{}, c, nil, nil, zerolog.Nop())

	var prices pricesResponse
	require.Equal(t, http.StatusOK, getJSON(t, s.Handler(), "/v1/prices", &prices))
	require.Equal(t, uint64(4), prices.Height)
	require.Equal(t, []uint32{10000, 10901}, prices.Prices)

	var avg averageResponse
	require.Equal(t, http.StatusOK, getJSON(t, s.Handler(), "/v1/average", &avg))
	require.True(t, avg.Available)
	require.Equal(t, uint32(10450), avg.Cents)
	require.Equal(t, "104.50", avg.USD)
}

func TestAverageUnavailable(t *testing.T) {
	s := NewServer(Options{}, fakeChain{}, nil, nil, zerolog.Nop())

	var avg averageResponse
	require.Equal(t, http.StatusOK, getJSON(t, s.Handler(), "/v1/average", &avg))
	require.False(t, avg.Available)
	require.Empty(t, avg.USD)
}

func TestStatus(t *testing.T) {
	head := chain.Head{Height: 9, Hash: common.HexToHash("0x01"), ParentHash: common.HexToHash("0x02")}
	bus := events.NewBus(1, zerolog.Nop())
	_, cancel := bus.Subscribe()
	defer cancel()

	s := NewServer(Options{}, fakeChain{head: head, prices: []runtime.Sample{1}, pending: 3}, bus, nil, zerolog.Nop())

	var status statusResponse
	require.Equal(t, http.StatusOK, getJSON(t, s.Handler(), "/v1/status", &status))
	require.Equal(t, uint64(9), status.Height)
	require.Equal(t, head.Hash.Hex(), status.Hash)
	require.Equal(t, 1, status.Samples)
	require.Equal(t, 3, status.PendingTxs)
	require.Equal(t, 1, status.Subscribers)
}

func TestEventsWithoutStore(t *testing.T) {
	s := NewServer(Options{}, fakeChain{}, nil, nil, zerolog.Nop())

	var rpcErr RPCError
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, s.Handler(), "/v1/events", &rpcErr))
	require.Equal(t, InternalErrorCode, rpcErr.Code)
	require.Equal(t, "Unknown error occurred", rpcErr.Message)
	require.Contains(t, rpcErr.Data, "not configured")
}

func TestEventsStoreFailure(t *testing.T) {
	store := &fakeEvents{err: errors.New("connection reset")}
	s := NewServer(Options{}, fakeChain{}, nil, store, zerolog.Nop())

	var rpcErr RPCError
	require.Equal(t, http.StatusInternalServerError, getJSON(t, s.Handler(), "/v1/events", &rpcErr))
	require.Equal(t, "connection reset", rpcErr.Data)
}

func TestEventsLimit(t *testing.T) {
	store := &fakeEvents{events: []storage.PriceEvent{{Height: 2, Price: 5, Origin: "0xabc"}}}
	s := NewServer(Options{}, fakeChain{}, nil, store, zerolog.Nop())

	var out []eventResponse
	require.Equal(t, http.StatusOK, getJSON(t, s.Handler(), "/v1/events?limit=10000", &out))
	require.Equal(t, maxEventLimit, store.limit)
	require.Len(t, out, 1)
	require.Equal(t, uint32(5), out[0].Price)

	var rpcErr RPCError
	require.Equal(t, http.StatusBadRequest, getJSON(t, s.Handler(), "/v1/events?limit=x", &rpcErr))
}

func TestInternal(t *testing.T) {
	err := Internal(zerolog.Nop(), errors.New("boom"))
	require.Equal(t, RPCError{Code: -32603, Message: "Unknown error occurred", Data: "boom"}, err)

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	require.JSONEq(t, `{"code":-32603,"message":"Unknown error occurred","data":"boom"}`, string(raw))
}

func TestStreamDeliversNewPrice(t *testing.T) {
	bus := events.NewBus(4, zerolog.Nop())
	s := NewServer(Options{}, fakeChain{}, bus, nil, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	who := common.HexToAddress("0x1234")
	bus.Publish(events.Record{Height: 3, Index: 0, Event: runtime.EventNewPrice{Price: 10450, Who: who}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, runtime.EventTypeNewPrice, msg.Type)
	require.Equal(t, uint64(3), msg.Height)
	require.Equal(t, uint32(10450), msg.Price)
	require.Equal(t, "104.50", msg.USD)
	require.Equal(t, who.Hex(), msg.Who)
}
