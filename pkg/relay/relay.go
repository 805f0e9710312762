package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

const DefaultUpstreamURL = "wss://api.stepfun.com/v1/realtime"

// Config tunes the relay runtime.
type Config struct {
	UpstreamURL        string
	DialTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxPendingMessages int
	ReadLimit          int64
}

// Relay accepts downstream connections and bridges each to its own upstream connection.
type Relay struct {
	cfg    Config
	dialer *websocket.Dialer
	hub    *Hub
}

func NewRelay(cfg Config, hub *Hub) *Relay {
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = DefaultUpstreamURL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if hub == nil {
		hub = NewHub()
	}

	return &Relay{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		hub: hub,
	}
}

func (r *Relay) Hub() *Hub {
	return r.hub
}

// UpstreamTarget builds the upstream URL for a model variant.
func (r *Relay) UpstreamTarget(model string) string {
	return r.cfg.UpstreamURL + "?model=" + url.QueryEscape(model)
}

type eventKind int

const (
	evDownstreamMessage eventKind = iota
	evDownstreamClose
	evUpstreamOpen
	evUpstreamMessage
	evUpstreamError
	evUpstreamClose
)

type event struct {
	kind        eventKind
	messageType int
	data        []byte
	err         error
	code        int
	reason      string
	conn        *websocket.Conn
}

// Serve bridges downstream to a fresh upstream connection authorised with apiKey and
// blocks until both sides are closed or ctx is cancelled.
func (r *Relay) Serve(ctx context.Context, downstream *websocket.Conn, apiKey, model string) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unregister := r.hub.Register(id, cancel)
	defer unregister()

	logger := logx.WithContext(ctx).WithFields(logx.Field("conn", id), logx.Field("model", model))
	logger.Infof("客户端已连接，正在连接上游 (key=%s)", MaskKey(apiKey))

	if r.cfg.ReadLimit > 0 {
		downstream.SetReadLimit(r.cfg.ReadLimit)
	}

	bridge := NewBridge(newWSPeer(downstream, r.cfg.WriteTimeout), r.cfg.MaxPendingMessages, logger)

	events := make(chan event, 64)
	done := make(chan struct{})
	emit := func(ev event) bool {
		select {
		case events <- ev:
			return true
		case <-done:
			return false
		}
	}

	var upstream *websocket.Conn
	defer func() {
		close(done)
		_ = downstream.Close()
		if upstream != nil {
			_ = upstream.Close()
		}
		logger.Infof("连接已结束 (failed=%v)", bridge.Failed())
	}()

	threading.GoSafe(func() {
		readLoop(downstream, emit, func(err error) event {
			return event{kind: evDownstreamClose, err: err}
		}, evDownstreamMessage)
	})

	threading.GoSafe(func() {
		conn, err := r.dial(ctx, apiKey, model)
		if err != nil {
			emit(event{kind: evUpstreamError, err: err})
			return
		}
		if !emit(event{kind: evUpstreamOpen, conn: conn}) {
			_ = conn.Close()
		}
	})

	for bridge.State() != Closed {
		select {
		case <-ctx.Done():
			bridge.Shutdown()

		case ev := <-events:
			switch ev.kind {
			case evDownstreamMessage:
				bridge.OnDownstreamMessage(ev.messageType, ev.data)

			case evDownstreamClose:
				if ev.err != nil && websocket.IsUnexpectedCloseError(ev.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Errorf("客户端连接异常: %v", ev.err)
				}
				bridge.OnDownstreamClose()

			case evUpstreamOpen:
				if r.cfg.ReadLimit > 0 {
					ev.conn.SetReadLimit(r.cfg.ReadLimit)
				}
				upstream = ev.conn
				logger.Infof("上游已连接")
				bridge.OnUpstreamOpen(newWSPeer(ev.conn, r.cfg.WriteTimeout))
				if bridge.State() == Relaying {
					conn := ev.conn
					threading.GoSafe(func() {
						readLoop(conn, emit, upstreamEnd, evUpstreamMessage)
					})
				}

			case evUpstreamMessage:
				bridge.OnUpstreamMessage(ev.messageType, ev.data)

			case evUpstreamError:
				bridge.OnUpstreamError(ev.err)

			case evUpstreamClose:
				bridge.OnUpstreamClose(ev.code, ev.reason)
			}
		}
	}
}

func (r *Relay) dial(ctx context.Context, apiKey, model string) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	conn, resp, err := r.dialer.DialContext(ctx, r.UpstreamTarget(model), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("upstream handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("upstream dial failed: %w", err)
	}
	return conn, nil
}

func readLoop(conn *websocket.Conn, emit func(event) bool, end func(error) event, kind eventKind) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			emit(end(err))
			return
		}
		if !emit(event{kind: kind, messageType: mt, data: data}) {
			return
		}
	}
}

// upstreamEnd maps a read error to a close event when the peer sent a close frame,
// and to an error event otherwise.
func upstreamEnd(err error) event {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return event{kind: evUpstreamClose, code: ce.Code, reason: ce.Text}
	}
	return event{kind: evUpstreamError, err: err}
}

// MaskKey keeps only a short prefix of a credential for logs.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
