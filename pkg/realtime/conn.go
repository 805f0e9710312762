package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unclewu3242592726/aitutor/pkg/model"
)

// Conn is a message-oriented socket to the relay.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a relay connection for one model variant.
type Dialer interface {
	Dial(ctx context.Context, apiKey string, m model.ModelVariant) (Conn, error)
}

// WSDialer dials the relay's websocket endpoint, passing the key and model as query parameters.
type WSDialer struct {
	RelayURL string
	Dialer   *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context, apiKey string, m model.ModelVariant) (Conn, error) {
	target, err := RelayTarget(d.RelayURL, apiKey, m)
	if err != nil {
		return nil, err
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}
	return conn, nil
}

// RelayTarget appends the credential and model to the relay URL.
func RelayTarget(relayURL, apiKey string, m model.ModelVariant) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", relayURL, err)
	}
	q := u.Query()
	q.Set("apiKey", apiKey)
	q.Set("model", string(m))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
