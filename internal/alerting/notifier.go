package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"price-oracle/internal/runtime"
)

// Notification describes one accepted price submission.
type Notification struct {
	Height     uint64
	BlockHash  common.Hash
	Price      uint32
	Who        common.Address
	Average    uint32
	HasAverage bool
	Time       time.Time
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts notifications through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered notification via sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Info().Uint64("height", note.Height).
		Str("who", note.Who.Hex()).
		Uint32("price", note.Price).
		Msg("notification sent")
	return nil
}

func renderMessage(note Notification) string {
	var b strings.Builder
	b.WriteString("[BTC/USD Oracle]\n")
	fmt.Fprintf(&b, "Block: #%d %s\n", note.Height, shortHash(note.BlockHash))
	fmt.Fprintf(&b, "Price: $%s\n", runtime.Sample(note.Price).USD())
	fmt.Fprintf(&b, "From: %s\n", note.Who.Hex())
	if note.HasAverage {
		fmt.Fprintf(&b, "Average: $%s\n", runtime.Sample(note.Average).USD())
	}
	if !note.Time.IsZero() {
		fmt.Fprintf(&b, "Time: %s UTC\n", note.Time.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10]
}

var _ Notifier = (*TelegramNotifier)(nil)
