// Package api serves read-only views of oracle state over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"price-oracle/internal/chain"
	"price-oracle/internal/events"
	"price-oracle/internal/runtime"
	"price-oracle/internal/storage"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// ChainReader exposes finalized chain state.
type ChainReader interface {
	Head() chain.Head
	Prices() []runtime.Sample
	Average() (runtime.Sample, bool)
	PendingTxs() int
}

// Options configure the API server.
type Options struct {
	Addr string
}

// Server routes API requests. bus and store are optional.
type Server struct {
	opts   Options
	chain  ChainReader
	bus    *events.Bus
	store  storage.EventStore
	logger zerolog.Logger
	router *mux.Router
}

// NewServer constructs the API server and its routes.
func NewServer(opts Options, reader ChainReader, bus *events.Bus, store storage.EventStore, logger zerolog.Logger) *Server {
	s := &Server{
		opts:   opts,
		chain:  reader,
		bus:    bus,
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	v1.HandleFunc("/average", s.handleAverage).Methods(http.MethodGet)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/events", s.handleStream)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("api shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type pricesResponse struct {
	Height uint64   `json:"height"`
	Prices []uint32 `json:"prices"`
}

type averageResponse struct {
	Height    uint64 `json:"height"`
	Available bool   `json:"available"`
	Cents     uint32 `json:"cents,omitempty"`
	USD       string `json:"usd,omitempty"`
}

type statusResponse struct {
	Height      uint64 `json:"height"`
	Hash        string `json:"hash"`
	ParentHash  string `json:"parent_hash"`
	Samples     int    `json:"samples"`
	PendingTxs  int    `json:"pending_txs"`
	Subscribers int    `json:"subscribers"`
}

type eventResponse struct {
	Height uint64    `json:"height"`
	Index  int       `json:"index"`
	Price  uint32    `json:"price"`
	Origin string    `json:"origin"`
	Time   time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrices(w http.ResponseWriter, _ *http.Request) {
	head := s.chain.Head()
	samples := s.chain.Prices()
	prices := make([]uint32, len(samples))
	for i, p := range samples {
		prices[i] = uint32(p)
	}
	s.writeJSON(w, http.StatusOK, pricesResponse{Height: head.Height, Prices: prices})
}

func (s *Server) handleAverage(w http.ResponseWriter, _ *http.Request) {
	resp := averageResponse{Height: s.chain.Head().Height}
	if avg, ok := s.chain.Average(); ok {
		resp.Available = true
		resp.Cents = uint32(avg)
		resp.USD = avg.USD()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	head := s.chain.Head()
	resp := statusResponse{
		Height:     head.Height,
		Hash:       head.Hash.Hex(),
		ParentHash: head.ParentHash.Hex(),
		Samples:    len(s.chain.Prices()),
		PendingTxs: s.chain.PendingTxs(),
	}
	if s.bus != nil {
		resp.Subscribers = s.bus.Subscribers()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, RPCError{Code: -32602, Message: "invalid limit"})
			return
		}
		limit = min(n, maxEventLimit)
	}

	if s.store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, Internal(s.logger, storage.ErrNotConfigured))
		return
	}
	evs, err := s.store.ListRecentEvents(r.Context(), limit)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, Internal(s.logger, err))
		return
	}

	out := make([]eventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, eventResponse{
			Height: ev.Height,
			Index:  ev.Index,
			Price:  ev.Price,
			Origin: ev.Origin,
			Time:   ev.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}
