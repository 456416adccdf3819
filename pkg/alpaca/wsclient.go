package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrAuth is returned when the stream rejects the credentials.
var ErrAuth = errors.New("websocket authentication failed")

// WSClient handles one streaming connection to the market data websocket.
// Reconnecting is left to the caller: each Session is a fresh connection.
type WSClient struct {
	url     string
	key     string
	secret  string
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewWSClient creates a websocket client. timeout bounds the dial and the
// authentication handshake.
func NewWSClient(url, key, secret string, timeout time.Duration, logger *zap.Logger) *WSClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSClient{
		url:     url,
		key:     key,
		secret:  secret,
		timeout: timeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		logger:  logger,
	}
}

// Session connects, authenticates and subscribes to trades for symbols, then
// passes every frame to handler until the connection fails or ctx is done.
// It returns nil only when ctx was cancelled.
func (c *WSClient) Session(ctx context.Context, symbols []string, handler func([]byte)) error {
	// Attempt to connect to the WebSocket server
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	defer conn.Close()
	c.logger.Info("WebSocket connected", zap.String("url", c.url))

	// Unblock ReadMessage on cancel
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := c.authenticate(conn); err != nil {
		return err
	}

	// Send subscription message
	subMsg := map[string]interface{}{
		"action": "subscribe",
		"trades": symbols,
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("websocket subscribe failed: %w", err)
	}
	c.logger.Info("subscribed to trades", zap.Strings("symbols", symbols))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		if handler != nil {
			handler(msg)
		}
	}
}

// authenticate sends the key pair and waits for the server's verdict.
func (c *WSClient) authenticate(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	defer conn.SetReadDeadline(time.Time{})

	authMsg := map[string]string{
		"action": "auth",
		"key":    c.key,
		"secret": c.secret,
	}
	if err := conn.WriteJSON(authMsg); err != nil {
		return fmt.Errorf("websocket auth send: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket auth read: %w", err)
		}
		var frame []ControlMessage
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.logger.Debug("ignoring non-control frame during auth", zap.ByteString("msg", msg))
			continue
		}
		for _, m := range frame {
			switch {
			case m.Type == MsgSuccess && m.Msg == "authenticated":
				return nil
			case m.Type == MsgError:
				return fmt.Errorf("%w: %d %s", ErrAuth, m.Code, m.Msg)
			}
		}
	}
}
