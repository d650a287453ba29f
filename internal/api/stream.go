package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"price-oracle/internal/events"
	"price-oracle/internal/runtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamMessage is one event pushed over /ws/events.
type StreamMessage struct {
	Type      string    `json:"type"`
	Height    uint64    `json:"height"`
	BlockHash string    `json:"block_hash"`
	Index     int       `json:"index"`
	Price     uint32    `json:"price"`
	USD       string    `json:"usd"`
	Who       string    `json:"who"`
	Time      time.Time `json:"time"`
}

func newStreamMessage(rec events.Record) (StreamMessage, bool) {
	np, ok := rec.Event.(runtime.EventNewPrice)
	if !ok {
		return StreamMessage{}, false
	}
	return StreamMessage{
		Type:      np.Type(),
		Height:    rec.Height,
		BlockHash: rec.BlockHash.Hex(),
		Index:     rec.Index,
		Price:     uint32(np.Price),
		USD:       np.Price.USD(),
		Who:       np.Who.Hex(),
		Time:      rec.Time,
	}, true
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, RPCError{Code: InternalErrorCode, Message: "event stream disabled"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	records, cancel := s.bus.Subscribe()
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("stream client connected")

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, records, done)

	cancel()
	_ = conn.Close()
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("stream client disconnected")
}

// readPump discards client frames and closes done once the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("stream read")
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, records <-chan events.Record, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case rec, ok := <-records:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msg, ok := newStreamMessage(rec)
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Msg("stream write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
