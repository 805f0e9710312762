package relay

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/pkg/protocol"
)

// State is the lifecycle stage of one bridged connection.
type State int

const (
	AwaitingUpstream State = iota
	Relaying
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingUpstream:
		return "awaiting_upstream"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	reasonClientDisconnected = "Client disconnected"
	reasonServerClosed       = "Server connection closed"
	reasonShutdown           = "Server shutting down"
)

type frame struct {
	messageType int
	data        []byte
}

// Bridge pairs one downstream peer with one upstream peer. It is not safe for
// concurrent use; the runtime feeds it from a single goroutine.
type Bridge struct {
	logx.Logger
	downstream Peer
	upstream   Peer
	state      State
	failed     bool
	pending    []frame
	maxPending int
}

// NewBridge creates a bridge awaiting its upstream. maxPending <= 0 means unbounded.
func NewBridge(downstream Peer, maxPending int, logger logx.Logger) *Bridge {
	if logger == nil {
		logger = logx.WithContext(context.Background())
	}
	return &Bridge{
		Logger:     logger,
		downstream: downstream,
		state:      AwaitingUpstream,
		maxPending: maxPending,
	}
}

func (b *Bridge) State() State {
	return b.state
}

func (b *Bridge) Failed() bool {
	return b.failed
}

func (b *Bridge) PendingLen() int {
	return len(b.pending)
}

// OnDownstreamMessage queues the frame until the upstream is open, then forwards it verbatim.
func (b *Bridge) OnDownstreamMessage(messageType int, data []byte) {
	if b.state == Closed || b.failed {
		return
	}

	if messageType == websocket.TextMessage {
		if typ, ok := protocol.PeekType(data); ok {
			b.Debugf("客户端消息: %s", typ)
		}
	}

	if b.state == AwaitingUpstream {
		if b.maxPending > 0 && len(b.pending) >= b.maxPending {
			b.Errorf("上游未就绪，待发送队列已满 (%d)", b.maxPending)
			b.fail(protocol.QueueOverflowFrame(b.maxPending))
			return
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		b.pending = append(b.pending, frame{messageType: messageType, data: buf})
		return
	}

	if err := b.upstream.Send(messageType, data); err != nil {
		b.OnUpstreamError(err)
	}
}

// OnUpstreamOpen flushes the pending queue in arrival order and starts relaying.
// A bridge that already closed or failed closes the late upstream instead.
func (b *Bridge) OnUpstreamOpen(upstream Peer) {
	if b.state != AwaitingUpstream || b.failed {
		_ = upstream.Close(websocket.CloseNormalClosure, reasonClientDisconnected)
		return
	}

	b.upstream = upstream
	pending := b.pending
	b.pending = nil
	b.state = Relaying

	if len(pending) > 0 {
		b.Infof("上游已连接，发送 %d 条排队消息", len(pending))
	}
	for _, f := range pending {
		if err := upstream.Send(f.messageType, f.data); err != nil {
			b.OnUpstreamError(err)
			return
		}
	}
}

// OnUpstreamMessage forwards an upstream frame to the client.
func (b *Bridge) OnUpstreamMessage(messageType int, data []byte) {
	if b.state == Closed || b.failed {
		return
	}
	if err := b.downstream.Send(messageType, data); err != nil {
		b.Errorf("转发上游消息失败: %v", err)
	}
}

// OnUpstreamError marks the bridge failed, reports the error to the client and tears down.
func (b *Bridge) OnUpstreamError(err error) {
	if b.state == Closed {
		return
	}
	b.Errorf("上游连接错误: %v", err)
	b.fail(protocol.ConnectionErrorFrame(err.Error()))
}

// OnUpstreamClose propagates an upstream close. Non-normal codes are reported to the client first.
func (b *Bridge) OnUpstreamClose(code int, reason string) {
	if b.state == Closed {
		return
	}
	b.pending = nil

	if code != websocket.CloseNormalClosure {
		b.Errorf("上游异常关闭: code=%d reason=%s", code, reason)
		if err := b.downstream.Send(websocket.TextMessage, protocol.ConnectionClosedFrame(code, reason)); err != nil {
			b.Errorf("发送关闭通知失败: %v", err)
		}
	} else {
		b.Infof("上游正常关闭")
	}

	b.state = Closed
	_ = b.downstream.Close(websocket.CloseNormalClosure, reasonServerClosed)
}

// OnDownstreamClose closes the upstream with a normal code. Queued frames are dropped.
func (b *Bridge) OnDownstreamClose() {
	if b.state == Closed {
		return
	}
	b.pending = nil
	b.state = Closed

	if b.upstream != nil {
		_ = b.upstream.Close(websocket.CloseNormalClosure, reasonClientDisconnected)
	}
}

// Shutdown closes both sides with a normal code.
func (b *Bridge) Shutdown() {
	if b.state == Closed {
		return
	}
	b.pending = nil
	b.state = Closed

	if b.upstream != nil {
		_ = b.upstream.Close(websocket.CloseNormalClosure, reasonShutdown)
	}
	_ = b.downstream.Close(websocket.CloseNormalClosure, reasonShutdown)
}

func (b *Bridge) fail(errFrame []byte) {
	b.failed = true
	b.pending = nil

	if err := b.downstream.Send(websocket.TextMessage, errFrame); err != nil {
		b.Errorf("发送错误通知失败: %v", err)
	}

	b.state = Closed
	if b.upstream != nil {
		_ = b.upstream.Close(websocket.CloseNormalClosure, reasonServerClosed)
	}
	_ = b.downstream.Close(websocket.CloseNormalClosure, reasonServerClosed)
}
