package offchain

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"price-oracle/internal/runtime"
)

const (
	// DefaultPriceURL serves {"USD":<number>} for BTC.
	DefaultPriceURL = "https://min-api.cryptocompare.com/data/price?fsym=BTC&tsyms=USD"

	responsePrefix = `{"USD":`
	maxBodyBytes   = 1 << 16
)

// PriceFetcher retrieves a price quote outside the deterministic path.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (runtime.Sample, error)
}

// FetcherOptions parameterise the HTTP price fetcher.
type FetcherOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Fetcher reads the BTC/USD quote over HTTP.
type Fetcher struct {
	opts   FetcherOptions
	logger zerolog.Logger
	client *http.Client
}

// NewFetcher constructs a price fetcher.
func NewFetcher(opts FetcherOptions, logger zerolog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if opts.URL == "" {
		opts.URL = DefaultPriceURL
	}

	return &Fetcher{
		opts:   opts,
		logger: logger.With().Str("component", "price_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchPrice performs one GET and returns the quote in cents.
func (f *Fetcher) FetchPrice(ctx context.Context) (runtime.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn().Int("status", resp.StatusCode).Msg("unexpected status code")
		return 0, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}

	price, err := ParsePrice(body)
	if err != nil {
		f.logger.Warn().Err(err).Bytes("body", body).Msg("unexpected price response")
		return 0, err
	}
	return price, nil
}

// ParsePrice extracts cents from a body of the exact form {"USD":<number>}.
// The number is read as a float, scaled by 100 and truncated; values outside
// the sample range saturate.
func ParsePrice(body []byte) (runtime.Sample, error) {
	if !utf8.Valid(body) {
		return 0, fmt.Errorf("%w: body is not valid utf-8", ErrProtocol)
	}
	text := string(body)
	if len(text) <= len(responsePrefix) {
		return 0, fmt.Errorf("%w: body too short (%d bytes)", ErrProtocol, len(text))
	}
	if !strings.HasPrefix(text, responsePrefix) {
		return 0, fmt.Errorf("%w: unexpected body prefix", ErrProtocol)
	}
	if !strings.HasSuffix(text, "}") {
		return 0, fmt.Errorf("%w: body not closed by '}'", ErrProtocol)
	}

	raw := text[len(responsePrefix) : len(text)-1]
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, raw)
	}
	return toCents(value), nil
}

func toCents(value float64) runtime.Sample {
	cents := value * 100
	switch {
	case math.IsNaN(cents) || cents <= 0:
		return 0
	case cents >= math.MaxUint32:
		return math.MaxUint32
	default:
		return runtime.Sample(cents)
	}
}

var _ PriceFetcher = (*Fetcher)(nil)
