package offchain

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"price-oracle/internal/runtime"
)

func newTestFetcher(url string) *Fetcher {
	return NewFetcher(FetcherOptions{URL: url, Timeout: time.Second, UserAgent: "test"}, zerolog.Nop())
}

func TestFetchPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"USD":104.50}`))
	}))
	defer srv.Close()

	price, err := newTestFetcher(srv.URL).FetchPrice(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 10450 {
		t.Fatalf("expected 10450 cents, got %d", price)
	}
}

func TestFetchPriceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchPrice(context.Background())
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestFetchPriceNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(url).FetchPrice(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		want runtime.Sample
		err  error
	}{
		{name: "integer", body: []byte(`{"USD":20000}`), want: 2000000},
		{name: "fraction truncated", body: []byte(`{"USD":1.239}`), want: 123},
		{name: "zero", body: []byte(`{"USD":0}`), want: 0},
		{name: "saturates", body: []byte(`{"USD":1e12}`), want: math.MaxUint32},
		{name: "negative clamps", body: []byte(`{"USD":-5}`), want: 0},
		{name: "invalid utf8", body: []byte{'{', 0xff, 0xfe, '}'}, err: ErrProtocol},
		{name: "too short", body: []byte(`{"USD":`), err: ErrProtocol},
		{name: "wrong currency", body: []byte(`{"EUR":10.0}`), err: ErrProtocol},
		{name: "wrong closing bracket", body: []byte(`{"USD":104.50]`), err: ErrProtocol},
		{name: "trailing garbage", body: []byte(`{"USD":104.50x`), err: ErrProtocol},
		{name: "not a number", body: []byte(`{"USD":abc}`), err: ErrParse},
		{name: "empty number", body: []byte(`{"USD":}`), err: ErrParse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePrice(tc.body)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
