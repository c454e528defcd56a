package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

const envelopeBuffer = 1024

// Client implements a SignalStream backed by the upstream signal feed
// WebSocket. Each frame on the socket carries one SignalEnvelope; frames that
// do not parse as an envelope are skipped.
type Client struct {
	apiKey         string
	websocketURL   string
	tickers        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new feed SignalStream.
func New(apiKey, websocketURL string, tickers []string, reconnectDelay, pingInterval time.Duration) drepo.SignalStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		tickers:        tickers,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the feed endpoint, attaching the API key when one is set.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.dialURL(), nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")
	return nil
}

func (c *Client) dialURL() string {
	if c.apiKey == "" {
		return c.websocketURL
	}
	return c.websocketURL + "?token=" + c.apiKey
}

// Subscribe announces every configured ticker on the open socket.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, t := range c.tickers {
		sub := map[string]string{"type": "subscribe", "ticker": t}
		if err := c.conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
		log.Printf("feed: subscribed %s", t)
	}
	return nil
}

// Read starts the ping and read loops and returns their output channels. Both
// channels close once the socket fails or ctx ends.
func (c *Client) Read(ctx context.Context) (<-chan *models.SignalEnvelope, <-chan error) {
	envelopes := make(chan *models.SignalEnvelope, envelopeBuffer)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)
	go c.readLoop(ctx, envelopes, errs)

	return envelopes, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.conn != nil {
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, envelopes chan<- *models.SignalEnvelope, errs chan<- error) {
	defer close(envelopes)
	defer close(errs)
	for {
		if ctx.Err() != nil {
			return
		}
		if c.conn == nil {
			errs <- fmt.Errorf("feed conn nil")
			return
		}
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			errs <- fmt.Errorf("feed read: %w", err)
			return
		}
		env, ok := decodeEnvelope(frame)
		if !ok {
			continue
		}
		select {
		case envelopes <- env:
		default:
			// drop on backpressure
		}
	}
}

// decodeEnvelope parses a frame, rejecting anything that is not a populated
// signal envelope.
func decodeEnvelope(frame []byte) (*models.SignalEnvelope, bool) {
	var env models.SignalEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, false
	}
	if env.Ticker == "" || len(env.Signals) == 0 {
		return nil, false
	}
	return &env, true
}

// Reconnect tears the socket down, waits out the backoff, and redials.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close marks the stream down and closes the socket.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether Connect succeeded more recently than Close.
func (c *Client) IsConnected() bool { return c.connected }
