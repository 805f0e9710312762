package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/unclewu3242592726/aitutor/pkg/audio"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/protocol"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/subject"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
)

const (
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 2 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultCardEvery            = 3

	fixedModelReason = "使用配置的模型"
)

var ErrClosed = errors.New("realtime client closed")

// Config is the session configuration preserved across reconnects.
type Config struct {
	APIKey       string
	Model        model.ModelVariant
	Voice        string
	Instructions string
	AutoSelect   bool
	Preferences  selector.Preferences

	// 每轮成功结束后重连次数清零
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	WriteTimeout         time.Duration

	// 知识卡片，Subject 为空时按对话内容识别学科
	Subject   string
	Persona   string
	CardEvery int
}

// Deps are the collaborators of a Client. Only Dialer and Sink are required.
type Deps struct {
	Dialer   Dialer
	Sink     audio.Sink
	Selector *selector.Selector
	Probe    *selector.LatencyProbe
	Device   *selector.DeviceDetector
	Tracker  *usage.Tracker
	Cards    cards.Source
}

// Handler receives session notifications. Callbacks run on the client's event loop
// and must not block.
type Handler struct {
	OnStateChange func(from, to TurnState)
	OnTranscript  func(role Role, text string)
	OnTurn        func(turn TurnRecord)
	OnModelChange func(result selector.Result)
	OnCards       func(cards []cards.Card)
	OnReconnect   func(attempt, max int)
	OnError       func(message string)
}

// Client drives one voice session through the relay.
type Client struct {
	logx.Logger
	cfg     Config
	deps    Deps
	handler Handler
	player  *audio.Player

	inbox     chan any
	done      chan struct{}
	closeOnce sync.Once

	state  atomic.Int32
	turns  atomic.Int64
	active atomic.Value

	// 以下字段只在事件循环中访问
	machine         Machine
	conn            Conn
	gen             uint64
	connecting      bool
	capturing       bool
	manual          bool
	transportFailed bool
	attempts        int
	current         model.ModelVariant
	selection       selector.Result
	selectedLatency int
	selectedDevice  model.DeviceTier
	history         []subject.Turn
}

type (
	cmdConnect      struct{}
	cmdDisconnect   struct{}
	cmdStartCapture struct{}
	cmdStopCapture  struct{}
	cmdAudio        struct{ frame []byte }
	connOpened      struct {
		conn    Conn
		attempt int
	}
	dialFailed struct {
		err     error
		attempt int
	}
	connFrame struct {
		gen  uint64
		data []byte
	}
	connLost struct {
		gen uint64
		err error
	}
	playbackDrained struct{}
	cardsReady      struct {
		resp *cards.Response
		err  error
	}
)

func NewClient(cfg Config, deps Deps, handler Handler) *Client {
	logger := logx.WithContext(context.Background())

	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.CardEvery == 0 {
		cfg.CardEvery = DefaultCardEvery
	}
	if !cfg.Model.Valid() {
		cfg.Model = model.DefaultModel
	}
	voice, ok := model.CoerceVoice(cfg.Voice)
	if !ok {
		logger.Infow("无效的音色，使用默认音色",
			logx.Field("voice", cfg.Voice), logx.Field("default", string(model.DefaultVoice)))
	}
	cfg.Voice = string(voice)

	if deps.Selector == nil {
		deps.Selector = selector.NewSelector()
	}
	if deps.Device == nil {
		deps.Device = selector.NewDeviceDetector(nil)
	}

	c := &Client{
		Logger:  logger,
		cfg:     cfg,
		deps:    deps,
		handler: handler,
		inbox:   make(chan any, 256),
		done:    make(chan struct{}),
		current: cfg.Model,
		selection: selector.Result{
			Model:  cfg.Model,
			Reason: fixedModelReason,
		},
	}
	c.active.Store(cfg.Model)
	c.player = audio.NewPlayer(deps.Sink, func() {
		threading.GoSafe(func() { c.post(playbackDrained{}) })
	})
	return c
}

// Run processes session events until ctx is cancelled or Close is called.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		c.Close()
		c.teardown()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg := <-c.inbox:
			c.handle(ctx, msg)
		}
	}
}

// Close stops the event loop. The connection is closed without reconnecting.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Connect opens the relay connection if none is active.
func (c *Client) Connect() error {
	return c.postErr(cmdConnect{})
}

// StartCapture marks the microphone as active, connecting first when needed.
func (c *Client) StartCapture() error {
	return c.postErr(cmdStartCapture{})
}

// StopCapture stops forwarding audio and clears the upstream input buffer.
func (c *Client) StopCapture() error {
	return c.postErr(cmdStopCapture{})
}

// Disconnect closes the connection on the user's behalf; no reconnection follows.
func (c *Client) Disconnect() error {
	return c.postErr(cmdDisconnect{})
}

// SendAudio encodes captured float samples as PCM16 and queues them for upstream.
func (c *Client) SendAudio(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	frame, err := json.Marshal(protocol.NewAudioAppend(audio.EncodeBase64(samples)))
	if err != nil {
		return err
	}
	return c.postErr(cmdAudio{frame: frame})
}

func (c *Client) State() TurnState {
	return TurnState(c.state.Load())
}

func (c *Client) Turns() int {
	return int(c.turns.Load())
}

// Model is the currently active model variant.
func (c *Client) Model() model.ModelVariant {
	return c.active.Load().(model.ModelVariant)
}

func (c *Client) post(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) postErr(msg any) error {
	if !c.post(msg) {
		return ErrClosed
	}
	return nil
}

func (c *Client) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case cmdConnect:
		c.manual = false
		c.connect(ctx)

	case cmdStartCapture:
		c.manual = false
		c.capturing = true
		if c.conn == nil {
			c.connect(ctx)
			return
		}
		c.apply(ctx, CaptureStarted{})

	case cmdStopCapture:
		c.capturing = false
		if c.conn != nil {
			c.send(protocol.NewBufferClear())
		}

	case cmdAudio:
		if c.conn == nil || !c.capturing {
			return
		}
		c.write(m.frame)

	case cmdDisconnect:
		c.disconnect(ctx)

	case connOpened:
		c.opened(ctx, m)

	case dialFailed:
		c.connecting = false
		if c.manual {
			return
		}
		c.Errorf("连接中继失败 (attempt=%d): %v", m.attempt, m.err)
		c.apply(ctx, Disconnected{})
		c.reconnect(ctx)

	case connFrame:
		if m.gen == c.gen {
			c.dispatch(ctx, m.data)
		}

	case connLost:
		if m.gen == c.gen {
			c.lost(ctx, m.err)
		}

	case playbackDrained:
		// 排空通知是异步投递的，期间可能又有新的音频入队
		if !c.player.Playing() {
			c.apply(ctx, PlaybackDrained{At: time.Now()})
		}

	case cardsReady:
		if m.err != nil {
			c.Errorf("生成知识卡片失败: %v", m.err)
			c.notifyError("生成知识卡片失败，请稍后重试")
			return
		}
		if c.handler.OnCards != nil {
			c.handler.OnCards(m.resp.Cards)
		}
	}
}

func (c *Client) connect(ctx context.Context) {
	if c.conn != nil || c.connecting {
		return
	}
	if c.machine.Turns == 0 && c.cfg.AutoSelect {
		c.reselect("")
	}
	c.apply(ctx, ConnectRequested{})
	c.dial(ctx, 0, 0)
}

func (c *Client) dial(ctx context.Context, attempt int, delay time.Duration) {
	c.connecting = true
	m := c.current
	threading.GoSafe(func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}

		conn, err := c.deps.Dialer.Dial(ctx, c.cfg.APIKey, m)
		if err != nil {
			c.post(dialFailed{err: err, attempt: attempt})
			return
		}
		if !c.post(connOpened{conn: conn, attempt: attempt}) {
			_ = conn.Close()
		}
	})
}

func (c *Client) opened(ctx context.Context, m connOpened) {
	c.connecting = false
	if c.manual {
		_ = m.conn.Close()
		return
	}

	c.gen++
	c.conn = m.conn
	c.transportFailed = false
	gen, conn := c.gen, m.conn
	threading.GoSafe(func() { c.readLoop(conn, gen) })

	if m.attempt > 0 {
		c.Infof("第 %d 次重连成功", m.attempt)
	} else {
		c.Infof("已连接中继 (model=%s)", c.current)
	}

	c.send(protocol.NewSessionUpdate(string(c.current), c.cfg.Voice, c.cfg.Instructions))
	c.apply(ctx, Connected{})
	if c.capturing {
		c.apply(ctx, CaptureStarted{})
	}
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.post(connLost{gen: gen, err: err})
			return
		}
		if !c.post(connFrame{gen: gen, data: data}) {
			return
		}
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	ev, err := protocol.DecodeServerEvent(data)
	if err != nil {
		c.Debugf("忽略无法解析的消息: %v", err)
		return
	}

	now := time.Now()
	switch e := ev.(type) {
	case protocol.SessionEvent:
		c.Debugf("会话已确认: %s", e.Type)

	case protocol.SpeechStarted:
		c.apply(ctx, SpeechStarted{At: now})

	case protocol.SpeechStopped:
		c.apply(ctx, SpeechStopped{At: now})

	case protocol.InputTranscriptCompleted:
		c.apply(ctx, UserTranscript{Text: e.Transcript})

	case protocol.AudioDelta:
		samples, err := audio.DecodeBase64(e.Delta)
		if err != nil {
			c.Errorf("音频解码失败: %v", err)
			return
		}
		c.apply(ctx, AudioReceived{ResponseID: e.ResponseID, Samples: samples})

	case protocol.TranscriptDelta:
		c.apply(ctx, TranscriptReceived{ResponseID: e.ResponseID, Text: e.Delta})

	case protocol.AudioDone:
		c.apply(ctx, AudioFinished{ResponseID: e.ResponseID, At: now})

	case protocol.ErrorEvent:
		if protocol.IsTransportError(e.Error) {
			// 中继随后会正常关闭连接，这里先记下以便触发重连
			c.transportFailed = true
			c.Errorf("中继报告传输错误: %s", e.Error.Text())
			return
		}
		c.Errorf("上游错误: %s (%s)", e.Error.Text(), e.Error.Type)
		c.apply(ctx, ProtocolError{Message: e.Error.Text()})

	case protocol.ResponseCreated:
		c.apply(ctx, ResponseStarted{ResponseID: e.Response.ID})

	case protocol.ResponseDone:
		c.Debugf("回复结束: %s", e.Response.Status)
		c.apply(ctx, ResponseEnded{ResponseID: e.Response.ID})

	case protocol.TranscriptDone:
		c.Debugf("收到 %s", ev.EventType())

	case protocol.UnknownEvent:
		c.Debugf("未处理的事件类型: %s", e.Type)
	}
}

func (c *Client) lost(ctx context.Context, err error) {
	_ = c.conn.Close()
	c.conn = nil
	c.apply(ctx, Disconnected{})

	if c.manual {
		return
	}
	if !c.transportFailed && isNormalClose(err) {
		c.Infof("连接已关闭")
		return
	}
	c.Errorf("连接异常断开: %v", err)
	c.reconnect(ctx)
}

// reconnect schedules the next attempt or gives up once the budget is spent.
func (c *Client) reconnect(ctx context.Context) {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.attempts = 0
		c.capturing = false
		c.notifyError("连接已断开，请检查网络后重试")
		return
	}

	c.attempts++
	c.Infof("%s 后进行第 %d/%d 次重连", c.cfg.ReconnectDelay, c.attempts, c.cfg.MaxReconnectAttempts)
	if c.handler.OnReconnect != nil {
		c.handler.OnReconnect(c.attempts, c.cfg.MaxReconnectAttempts)
	}
	c.apply(ctx, ConnectRequested{})
	c.dial(ctx, c.attempts, c.cfg.ReconnectDelay)
}

func (c *Client) disconnect(ctx context.Context) {
	c.manual = true
	c.capturing = false
	c.attempts = 0
	if c.conn != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Client disconnected"))
		_ = c.conn.Close()
		c.conn = nil
		c.gen++
	}
	c.apply(ctx, Disconnected{})
}

func (c *Client) teardown() {
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.player.Stop()
}

func (c *Client) apply(ctx context.Context, ev TurnEvent) {
	next, effects := Transition(c.machine, ev)
	c.machine = next
	c.state.Store(int32(next.State))
	c.turns.Store(int64(next.Turns))

	for _, eff := range effects {
		switch e := eff.(type) {
		case StateChanged:
			c.Debugf("状态 %s -> %s", e.From, e.To)
			if c.handler.OnStateChange != nil {
				c.handler.OnStateChange(e.From, e.To)
			}
		case EnqueueAudio:
			c.player.Enqueue(e.Samples)
		case StopPlayback:
			c.player.Stop()
		case CancelResponse:
			c.send(protocol.NewResponseCancel(e.ResponseID))
		case EmitTranscript:
			if c.handler.OnTranscript != nil {
				c.handler.OnTranscript(e.Role, e.Text)
			}
		case FinalizeTurn:
			c.finishTurn(ctx, e.Turn)
		case ReportError:
			c.notifyError(e.Message)
		}
	}
}

func (c *Client) finishTurn(ctx context.Context, turn TurnRecord) {
	// 连接能完成一轮对话才算恢复
	c.attempts = 0
	c.history = append(c.history, subject.Turn{UserMessage: turn.UserText, AIResponse: turn.AssistantText})
	c.track(ctx, turn)
	if c.handler.OnTurn != nil {
		c.handler.OnTurn(turn)
	}

	if probe := c.deps.Probe; probe != nil {
		threading.GoSafe(func() { probe.Measure(ctx) })
	}
	if c.cfg.AutoSelect {
		c.reselect(turn.UserText)
	}
	c.requestCards(ctx)
}

func (c *Client) track(ctx context.Context, turn TurnRecord) {
	if c.deps.Tracker == nil {
		return
	}

	rec := usage.Record{
		Timestamp:         turn.End.UnixMilli(),
		ModelUsed:         c.current,
		ComplexityScore:   c.selection.Score,
		ResponseTime:      turn.ResponseTime.Milliseconds(),
		NetworkLatency:    c.selectedLatency,
		DevicePerformance: c.selectedDevice,
		Reason:            c.selection.Reason,
	}
	if rec.DevicePerformance == "" {
		rec.DevicePerformance = c.deps.Device.Detect()
	}
	if err := c.deps.Tracker.Track(ctx, rec); err != nil {
		c.Errorf("记录使用数据失败: %v", err)
	}
}

// reselect picks the model for the next turn and pushes a session update when it changes.
// It only runs from idle, never while a response is in flight.
func (c *Client) reselect(utterance string) {
	latency := 0
	if c.deps.Probe != nil {
		latency = c.deps.Probe.Average()
	}
	device := c.deps.Device.Detect()

	result := c.deps.Selector.Select(selector.Context{
		Utterance:   utterance,
		Turns:       c.machine.Turns,
		LatencyMS:   latency,
		Device:      device,
		Preferences: c.cfg.Preferences,
	})
	c.selection = result
	c.selectedLatency = latency
	c.selectedDevice = device

	if result.Model == c.current {
		return
	}
	c.Infof("切换模型 %s -> %s: %s", c.current, result.Model, result.Reason)
	c.current = result.Model
	c.active.Store(result.Model)
	if c.conn != nil {
		c.send(protocol.NewSessionUpdate(string(c.current), c.cfg.Voice, c.cfg.Instructions))
	}
	if c.handler.OnModelChange != nil {
		c.handler.OnModelChange(result)
	}
}

func (c *Client) requestCards(ctx context.Context) {
	every := c.cfg.CardEvery
	turns := c.machine.Turns
	if c.deps.Cards == nil || every <= 0 || turns < every || turns%every != 0 {
		return
	}

	req := cards.Request{
		Conversations: append([]subject.Turn(nil), c.history...),
		Subject:       c.cfg.Subject,
		Persona:       c.cfg.Persona,
	}
	if req.Subject == "" {
		req.Subject = subject.Detect(req.Conversations, subject.DefaultThreshold).Name
	}

	source := c.deps.Cards
	threading.GoSafe(func() {
		resp, err := source.Generate(ctx, req)
		c.post(cardsReady{resp: resp, err: err})
	})
}

func (c *Client) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.Errorf("编码消息失败: %v", err)
		return
	}
	c.write(data)
}

// write failures are left to the read loop, which observes the broken connection.
func (c *Client) write(data []byte) {
	if c.conn == nil {
		return
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.Errorf("设置写超时失败: %v", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.Errorf("发送消息失败: %v", err)
	}
}

func (c *Client) notifyError(msg string) {
	if c.handler.OnError != nil {
		c.handler.OnError(msg)
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure
}
