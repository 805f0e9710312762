package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclewu3242592726/aitutor/pkg/audio"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/protocol"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
)

type fakeConn struct {
	// 帧和读错误共用一个通道，保证顺序
	in        chan any
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   [][]byte
	deadlines []time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan any, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case item := <-c.in:
		if err, ok := item.(error); ok {
			return 0, nil, err
		}
		return websocket.TextMessage, item.([]byte), nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mt == websocket.CloseMessage {
		c.written = append(c.written, []byte(`{"type":"close"}`))
		return nil
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, t)
	return nil
}

func (c *fakeConn) writes() (frames int, deadlines []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written), append([]time.Time(nil), c.deadlines...)
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(frame string) {
	c.in <- []byte(frame)
}

func (c *fakeConn) end(code int) {
	c.in <- error(&websocket.CloseError{Code: code})
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, data := range c.written {
		typ, _ := protocol.PeekType(data)
		out = append(out, typ)
	}
	return out
}

func (c *fakeConn) sessionUpdates() []protocol.SessionUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.SessionUpdate
	for _, data := range c.written {
		if typ, _ := protocol.PeekType(data); typ != protocol.TypeSessionUpdate {
			continue
		}
		var su protocol.SessionUpdate
		if json.Unmarshal(data, &su) == nil {
			out = append(out, su)
		}
	}
	return out
}

// find decodes the first written frame of the given type into v.
func (c *fakeConn) find(typ string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, data := range c.written {
		if got, _ := protocol.PeekType(data); got == typ {
			return json.Unmarshal(data, v) == nil
		}
	}
	return false
}

type fakeDialer struct {
	conns chan *fakeConn

	mu     sync.Mutex
	models []model.ModelVariant
	keys   []string
}

func newFakeDialer(conns ...*fakeConn) *fakeDialer {
	d := &fakeDialer{conns: make(chan *fakeConn, len(conns))}
	for _, c := range conns {
		d.conns <- c
	}
	return d
}

func (d *fakeDialer) Dial(_ context.Context, apiKey string, m model.ModelVariant) (Conn, error) {
	d.mu.Lock()
	d.models = append(d.models, m)
	d.keys = append(d.keys, apiKey)
	d.mu.Unlock()

	select {
	case c := <-d.conns:
		return c, nil
	default:
		return nil, errors.New("dial tcp: connection refused")
	}
}

func (d *fakeDialer) seen() ([]model.ModelVariant, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.ModelVariant(nil), d.models...), append([]string(nil), d.keys...)
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.models)
}

// instantSink finishes every buffer immediately.
type instantSink struct{}

func (instantSink) Play(_ []float32, done func()) func() {
	done()
	return func() {}
}

// holdSink never finishes on its own.
type holdSink struct {
	mu     sync.Mutex
	played int
	stops  int
}

func (s *holdSink) Play(_ []float32, _ func()) func() {
	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.stops++
		s.mu.Unlock()
	}
}

func (s *holdSink) counts() (played, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played, s.stops
}

type fakeCards struct {
	mu   sync.Mutex
	reqs []cards.Request
}

func (f *fakeCards) Generate(_ context.Context, req cards.Request) (*cards.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return &cards.Response{Cards: []cards.Card{{ID: "card-1", Title: "t", Description: "d"}}, Total: 1}, nil
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func startClient(t *testing.T, cfg Config, deps Deps, h Handler) *Client {
	t.Helper()
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 10 * time.Millisecond
	}
	if deps.Sink == nil {
		deps.Sink = instantSink{}
	}
	c := NewClient(cfg, deps, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func audioDelta(responseID string, samples []float32) string {
	return fmt.Sprintf(`{"type":"response.audio.delta","response_id":%q,"delta":%q}`, responseID, audio.EncodeBase64(samples))
}

func TestClientTurnLifecycle(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	store, err := usage.NewStore(usage.StoreTypeMemory)
	require.NoError(t, err)
	tracker := usage.NewTracker(context.Background(), store, 10)
	cardSource := &fakeCards{}

	turns := make(chan TurnRecord, 1)
	changes := make(chan selector.Result, 4)
	gotCards := make(chan []cards.Card, 1)

	c := startClient(t, Config{
		APIKey:       "sk-test",
		Voice:        "robot",
		Instructions: "你是历史老师",
		AutoSelect:   true,
		CardEvery:    1,
	}, Deps{
		Dialer:  dialer,
		Tracker: tracker,
		Cards:   cardSource,
	}, Handler{
		OnTurn:        func(r TurnRecord) { turns <- r },
		OnModelChange: func(r selector.Result) { changes <- r },
		OnCards:       func(cs []cards.Card) { gotCards <- cs },
	})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session.update on open")
	eventually(t, func() bool { return c.State() == StateListening }, "listening after capture")

	// 首次连接用空话语做选择，落到轻量模型
	models, keys := dialer.seen()
	assert.Equal(t, []model.ModelVariant{model.ModelStepAudio2Mini}, models)
	assert.Equal(t, []string{"sk-test"}, keys)
	su := conn.sessionUpdates()[0]
	assert.Equal(t, string(model.ModelStepAudio2Mini), su.Session.Model)
	assert.Equal(t, string(model.DefaultVoice), su.Session.Voice)
	assert.Equal(t, "你是历史老师", su.Session.Instructions)

	require.NoError(t, c.SendAudio([]float32{0, 0.5, -0.5}))
	eventually(t, func() bool {
		var a protocol.AudioAppend
		return conn.find(protocol.TypeAudioAppend, &a) && a.Audio == audio.EncodeBase64([]float32{0, 0.5, -0.5})
	}, "audio appended")

	conn.push(`{"type":"session.created"}`)
	conn.push(`{"type":"input_audio_buffer.speech_started"}`)
	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"如果我要分析一下这个"}`)
	conn.push(audioDelta("resp_1", []float32{0.25, -0.25}))
	conn.push(`{"type":"response.audio_transcript.delta","response_id":"resp_1","delta":"好的"}`)
	conn.push(`{"type":"response.audio.done","response_id":"resp_1"}`)

	select {
	case r := <-turns:
		assert.Equal(t, 1, r.Index)
		assert.Equal(t, "如果我要分析一下这个", r.UserText)
		assert.Equal(t, "好的", r.AssistantText)
	case <-time.After(2 * time.Second):
		t.Fatal("turn not finalized")
	}

	// 第一次变更来自连接前的初始选择
	first := <-changes
	assert.Equal(t, model.ModelStepAudio2Mini, first.Model)
	select {
	case r := <-changes:
		assert.Equal(t, model.ModelStepAudio2, r.Model)
		assert.Equal(t, 60, r.Score)
	case <-time.After(2 * time.Second):
		t.Fatal("model not reselected")
	}
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 2 }, "reconfigured session")
	assert.Equal(t, string(model.ModelStepAudio2), conn.sessionUpdates()[1].Session.Model)
	assert.Equal(t, model.ModelStepAudio2, c.Model())
	assert.Equal(t, 1, c.Turns())
	assert.Equal(t, StateIdle, c.State())

	records := tracker.Recent(10)
	require.Len(t, records, 1)
	assert.Equal(t, model.ModelStepAudio2Mini, records[0].ModelUsed)
	assert.Equal(t, model.DeviceMedium, records[0].DevicePerformance)
	assert.NotEmpty(t, records[0].Reason)

	select {
	case cs := <-gotCards:
		assert.Len(t, cs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("cards not requested")
	}
	cardSource.mu.Lock()
	require.Len(t, cardSource.reqs, 1)
	assert.Equal(t, "如果我要分析一下这个", cardSource.reqs[0].Conversations[0].UserMessage)
	assert.NotEmpty(t, cardSource.reqs[0].Subject)
	cardSource.mu.Unlock()

	// 切换模型不需要新的物理连接
	assert.Equal(t, 1, dialer.calls())
}

func TestClientFixedModelWithoutAutoSelect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	c := startClient(t, Config{Model: model.ModelStepAudio2Mini, Voice: "wenrounansheng"}, Deps{Dialer: dialer}, Handler{})

	require.NoError(t, c.Connect())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session.update")
	su := conn.sessionUpdates()[0]
	assert.Equal(t, "step-audio-2-mini", su.Session.Model)
	assert.Equal(t, "wenrounansheng", su.Session.Voice)
	assert.Equal(t, StateIdle, c.State())
}

func TestClientBargeIn(t *testing.T) {
	conn := newFakeConn()
	sink := &holdSink{}
	c := startClient(t, Config{}, Deps{Dialer: newFakeDialer(conn), Sink: sink}, Handler{})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return c.State() == StateListening }, "listening")

	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(audioDelta("resp_1", []float32{0.1}))
	conn.push(audioDelta("resp_1", []float32{0.2}))
	eventually(t, func() bool { return c.State() == StateSpeaking }, "speaking")

	conn.push(`{"type":"input_audio_buffer.speech_started"}`)
	eventually(t, func() bool { return c.State() == StateListening }, "interrupted")
	eventually(t, func() bool {
		var cancel protocol.Control
		return conn.find(protocol.TypeResponseCancel, &cancel) && cancel.ResponseID == "resp_1"
	}, "response cancelled")

	played, stops := sink.counts()
	assert.Equal(t, 1, played)
	assert.Equal(t, 1, stops)

	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(audioDelta("resp_1", []float32{0.3}))
	eventually(t, func() bool { return c.State() == StateThinking }, "thinking")
	time.Sleep(20 * time.Millisecond)
	played, _ = sink.counts()
	assert.Equal(t, 1, played, "late audio from the cancelled response must not play")
	assert.Equal(t, StateThinking, c.State())
}

func TestClientBargeInWithoutResponseIDs(t *testing.T) {
	conn := newFakeConn()
	sink := &holdSink{}
	c := startClient(t, Config{}, Deps{Dialer: newFakeDialer(conn), Sink: sink}, Handler{})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return c.State() == StateListening }, "listening")

	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(audioDelta("", []float32{0.1}))
	eventually(t, func() bool { return c.State() == StateSpeaking }, "speaking")

	conn.push(`{"type":"input_audio_buffer.speech_started"}`)
	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(audioDelta("", []float32{0.2}))
	eventually(t, func() bool { return c.State() == StateThinking }, "thinking")
	time.Sleep(20 * time.Millisecond)
	played, _ := sink.counts()
	assert.Equal(t, 1, played)

	conn.push(`{"type":"response.done","response":{"status":"cancelled"}}`)
	conn.push(`{"type":"response.created","response":{"status":"in_progress"}}`)
	conn.push(audioDelta("", []float32{0.3}))
	eventually(t, func() bool {
		played, _ := sink.counts()
		return played == 2
	}, "new response plays")
	assert.Equal(t, StateSpeaking, c.State())
}

func TestClientWritesWithDeadline(t *testing.T) {
	conn := newFakeConn()
	c := startClient(t, Config{WriteTimeout: time.Minute}, Deps{Dialer: newFakeDialer(conn)}, Handler{})

	start := time.Now()
	require.NoError(t, c.Connect())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session")

	frames, deadlines := conn.writes()
	require.NotEmpty(t, deadlines)
	assert.GreaterOrEqual(t, len(deadlines), frames)
	for _, d := range deadlines {
		assert.True(t, d.After(start.Add(59*time.Second)), "deadline %v", d)
	}
}

func TestClientReconnectsAfterAbnormalClose(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := newFakeDialer(first, second)
	reconnects := make(chan int, 3)

	c := startClient(t, Config{Model: model.ModelStepAudio2, Instructions: "hi"}, Deps{Dialer: dialer}, Handler{
		OnReconnect: func(attempt, limit int) {
			assert.Equal(t, 3, limit)
			reconnects <- attempt
		},
	})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return len(first.sessionUpdates()) == 1 }, "first session")

	first.end(websocket.CloseAbnormalClosure)
	eventually(t, func() bool { return len(second.sessionUpdates()) == 1 }, "second session")
	assert.Equal(t, 1, <-reconnects)

	su := second.sessionUpdates()[0]
	assert.Equal(t, "step-audio-2", su.Session.Model)
	assert.Equal(t, "hi", su.Session.Instructions)
	eventually(t, func() bool { return c.State() == StateListening }, "capture resumed")
}

func TestClientReconnectsAfterRelayTransportError(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := newFakeDialer(first, second)
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{})

	require.NoError(t, c.Connect())
	eventually(t, func() bool { return len(first.sessionUpdates()) == 1 }, "first session")

	first.push(`{"type":"error","error":{"type":"connection_error","message":"upstream dial failed"}}`)
	first.end(websocket.CloseNormalClosure)
	eventually(t, func() bool { return len(second.sessionUpdates()) == 1 }, "reconnected")
}

func TestClientNormalCloseDoesNotReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn, newFakeConn())
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{})

	require.NoError(t, c.Connect())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session")

	conn.end(websocket.CloseNormalClosure)
	eventually(t, func() bool { return c.State() == StateIdle }, "idle")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dialer.calls())
}

func TestClientReconnectBudgetExhausted(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	errs := make(chan string, 1)
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{
		OnError: func(msg string) { errs <- msg },
	})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session")

	conn.end(websocket.CloseAbnormalClosure)
	select {
	case msg := <-errs:
		assert.NotEmpty(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal error")
	}
	assert.Equal(t, 1+DefaultMaxReconnectAttempts, dialer.calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestClientReconnectBudgetNotResetBySession(t *testing.T) {
	var conns []*fakeConn
	for i := 0; i < 5; i++ {
		conn := newFakeConn()
		conn.push(`{"type":"session.created"}`)
		conn.end(websocket.CloseAbnormalClosure)
		conns = append(conns, conn)
	}
	dialer := newFakeDialer(conns...)
	errs := make(chan string, 1)
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{
		OnError: func(msg string) { errs <- msg },
	})

	require.NoError(t, c.Connect())
	select {
	case msg := <-errs:
		assert.NotEmpty(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal error")
	}
	assert.Equal(t, 1+DefaultMaxReconnectAttempts, dialer.calls())
}

func TestClientCompletedTurnResetsReconnectBudget(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	first.end(websocket.CloseAbnormalClosure)
	second.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	second.push(`{"type":"response.audio_transcript.delta","response_id":"resp_1","delta":"好"}`)
	second.push(`{"type":"response.audio.done","response_id":"resp_1"}`)
	second.end(websocket.CloseAbnormalClosure)
	conns := []*fakeConn{first, second}
	for i := 0; i < 3; i++ {
		conn := newFakeConn()
		conn.end(websocket.CloseAbnormalClosure)
		conns = append(conns, conn)
	}
	dialer := newFakeDialer(conns...)
	errs := make(chan string, 1)
	turns := make(chan TurnRecord, 1)
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{
		OnTurn:  func(r TurnRecord) { turns <- r },
		OnError: func(msg string) { errs <- msg },
	})

	require.NoError(t, c.Connect())
	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal error")
	}
	require.Len(t, turns, 1)
	assert.Equal(t, 5, dialer.calls())
}

func TestClientManualDisconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn, newFakeConn())
	c := startClient(t, Config{}, Deps{Dialer: dialer}, Handler{})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return len(conn.sessionUpdates()) == 1 }, "session")

	require.NoError(t, c.Disconnect())
	eventually(t, func() bool {
		types := conn.types()
		return len(types) > 0 && types[len(types)-1] == "close"
	}, "close frame sent")
	eventually(t, func() bool { return c.State() == StateIdle }, "idle")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dialer.calls())

	// 断开后音频直接丢弃
	require.NoError(t, c.SendAudio([]float32{1}))
	time.Sleep(10 * time.Millisecond)
	var a protocol.AudioAppend
	assert.False(t, conn.find(protocol.TypeAudioAppend, &a))
}

func TestClientProtocolError(t *testing.T) {
	conn := newFakeConn()
	errs := make(chan string, 1)
	c := startClient(t, Config{}, Deps{Dialer: newFakeDialer(conn)}, Handler{
		OnError: func(msg string) { errs <- msg },
	})

	require.NoError(t, c.StartCapture())
	eventually(t, func() bool { return c.State() == StateListening }, "listening")

	conn.push(`{"type":"input_audio_buffer.speech_stopped"}`)
	conn.push(`{"type":"error","error":{"type":"invalid_request_error","code":"bad_audio","message":"音频格式错误"}}`)

	select {
	case msg := <-errs:
		assert.Equal(t, "音频格式错误", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("protocol error not surfaced")
	}
	assert.Equal(t, StateIdle, c.State())
}

func TestClientClosed(t *testing.T) {
	c := NewClient(Config{}, Deps{Dialer: newFakeDialer(), Sink: instantSink{}}, Handler{})
	c.Close()
	assert.ErrorIs(t, c.Connect(), ErrClosed)
}

func TestRelayTarget(t *testing.T) {
	target, err := RelayTarget("ws://localhost:8888/ws?x=1", "sk a", model.ModelStepAudio2Mini)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8888/ws?apiKey=sk+a&model=step-audio-2-mini&x=1", target)
}
