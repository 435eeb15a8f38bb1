package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
	"nhooyr.io/websocket"

	"chatsync/pkg/logger"
)

// WSConfig configures the websocket client.
type WSConfig struct {
	URL                string
	Token              string
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxReconnects      int // 0 means unlimited
}

func (c *WSConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
}

// WSClient is a websocket Adapter with automatic reconnect. Inbound
// envelopes are dispatched sequentially from a single read loop.
type WSClient struct {
	cfg WSConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	handlers map[string][]Handler
	cancel   context.CancelFunc

	attempt     int
	connectedAt time.Time
}

// DialWS connects to the remote peer and starts the read loop.
func DialWS(ctx context.Context, cfg WSConfig) (*WSClient, error) {
	cfg.defaults()
	c := &WSClient{cfg: cfg, handlers: make(map[string][]Handler)}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.readLoop(loopCtx)
	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	url := strings.Replace(c.cfg.URL, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	if c.cfg.Token != "" {
		url += "?token=" + c.cfg.Token
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("channel dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connectedAt = time.Now()
	c.attempt = 0
	logger.Info("channel_connected", "url", c.cfg.URL)
	return nil
}

// On subscribes a handler for the named inbound event.
func (c *WSClient) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Emit marshals and sends one outbound envelope. Errors are returned for
// logging only; callers do not block local state on them.
func (c *WSClient) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("channel closed")
	}
	if conn == nil {
		return fmt.Errorf("channel not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = append(buf.B, `{"event":`...)
	nameb, _ := json.Marshal(event)
	buf.B = append(buf.B, nameb...)
	buf.B = append(buf.B, `,"data":`...)
	buf.B = append(buf.B, data...)
	buf.B = append(buf.B, '}')

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, buf.B); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close tears the connection down and stops reconnecting.
func (c *WSClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "bye")
	}
	return nil
}

func (c *WSClient) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("channel_read_failed", "error", err)
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("channel_bad_envelope", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSClient) dispatch(env Envelope) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[env.Event]...)
	c.mu.Unlock()
	if len(hs) == 0 {
		logger.Debug("channel_event_unhandled", "event", env.Event)
		return
	}
	for _, h := range hs {
		h(env.Data)
	}
}

// reconnect blocks through backoff attempts until connected or the
// context/attempt budget ends. Returns false when giving up.
func (c *WSClient) reconnect(ctx context.Context) bool {
	for {
		if c.cfg.MaxReconnects > 0 && c.attempt >= c.cfg.MaxReconnects {
			logger.Error("channel_reconnect_exhausted", "attempts", c.attempt)
			return false
		}
		delay := c.nextDelay()
		logger.Info("channel_reconnecting", "attempt", c.attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if err := c.connect(ctx); err == nil {
			return true
		}
	}
}

func (c *WSClient) nextDelay() time.Duration {
	// a long stable connection resets the backoff ladder once
	if !c.connectedAt.IsZero() && time.Since(c.connectedAt) > time.Minute {
		c.attempt = 0
		c.connectedAt = time.Time{}
	}
	jitter := time.Duration(rand.Float64() * float64(c.cfg.ReconnectBaseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(c.cfg.ReconnectBaseDelay)*math.Pow(2, float64(c.attempt))+float64(jitter),
		float64(c.cfg.ReconnectMaxDelay),
	))
	c.attempt++
	return delay
}
