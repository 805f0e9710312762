package realtime

import "time"

// TurnState is the voice state of a session.
type TurnState int

const (
	StateIdle TurnState = iota
	StateConnecting
	StateListening
	StateThinking
	StateSpeaking
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnRecord is a completed user/assistant exchange.
type TurnRecord struct {
	Index         int // 1-based
	UserText      string
	AssistantText string
	Start         time.Time
	End           time.Time
	ResponseTime  time.Duration
}

// Machine is the turn-taking state of one session. Transition never mutates its input.
type Machine struct {
	State TurnState
	Turns int

	turnStart  time.Time
	userText   string
	reply      string
	responseID string
	audioDone  bool
	playing    bool
	// 上游已开始生成回复
	responding bool
	// 被打断的回复，其后续音频一律丢弃
	cancelled string
	// 打断后到下一个回复开始前，不带 response_id 的输出也一律丢弃
	muted bool
}

// TurnEvent is an input to Transition.
type TurnEvent interface{ turnEvent() }

type (
	ConnectRequested struct{}
	Connected        struct{}
	CaptureStarted   struct{}
	SpeechStarted    struct{ At time.Time }
	SpeechStopped    struct{ At time.Time }
	UserTranscript   struct{ Text string }
	AudioReceived    struct {
		ResponseID string
		Samples    []float32
	}
	TranscriptReceived struct {
		ResponseID string
		Text       string
	}
	AudioFinished struct {
		ResponseID string
		At         time.Time
	}
	ResponseStarted struct{ ResponseID string }
	ResponseEnded   struct{ ResponseID string }
	PlaybackDrained struct{ At time.Time }
	ProtocolError   struct{ Message string }
	Disconnected    struct{}
)

func (ConnectRequested) turnEvent()   {}
func (Connected) turnEvent()          {}
func (CaptureStarted) turnEvent()     {}
func (SpeechStarted) turnEvent()      {}
func (SpeechStopped) turnEvent()      {}
func (UserTranscript) turnEvent()     {}
func (AudioReceived) turnEvent()      {}
func (TranscriptReceived) turnEvent() {}
func (AudioFinished) turnEvent()      {}
func (ResponseStarted) turnEvent()    {}
func (ResponseEnded) turnEvent()      {}
func (PlaybackDrained) turnEvent()    {}
func (ProtocolError) turnEvent()      {}
func (Disconnected) turnEvent()       {}

// Effect is an action the caller must perform after a transition.
type Effect interface{ effect() }

type (
	StateChanged struct{ From, To TurnState }
	EnqueueAudio struct{ Samples []float32 }
	StopPlayback struct{}
	// CancelResponse asks upstream to abandon the in-flight response.
	CancelResponse struct{ ResponseID string }
	EmitTranscript struct {
		Role Role
		Text string
	}
	FinalizeTurn struct{ Turn TurnRecord }
	ReportError  struct{ Message string }
)

func (StateChanged) effect()   {}
func (EnqueueAudio) effect()   {}
func (StopPlayback) effect()   {}
func (CancelResponse) effect() {}
func (EmitTranscript) effect() {}
func (FinalizeTurn) effect()   {}
func (ReportError) effect()    {}

// Transition applies ev to m and returns the next machine with the effects to run, in order.
func Transition(m Machine, ev TurnEvent) (Machine, []Effect) {
	next := m
	var effects []Effect

	moveTo := func(s TurnState) {
		if next.State != s {
			effects = append(effects, StateChanged{From: next.State, To: s})
			next.State = s
		}
	}

	switch e := ev.(type) {
	case ConnectRequested:
		if next.State == StateIdle {
			moveTo(StateConnecting)
		}

	case Connected:
		if next.State == StateConnecting {
			moveTo(StateIdle)
		}

	case CaptureStarted:
		if next.State == StateIdle || next.State == StateConnecting {
			moveTo(StateListening)
		}

	case SpeechStarted:
		switch next.State {
		case StateSpeaking:
			// 打断：立即停播并取消当前回复
			effects = append(effects, StopPlayback{}, CancelResponse{ResponseID: next.responseID})
			next.cancelled = next.responseID
			next.muted = true
			next.resetTurn()
			next.turnStart = e.At
			moveTo(StateListening)
		case StateThinking:
			// 回复尚未出声，但已生成的部分同样作废
			if next.responding || next.responseID != "" {
				effects = append(effects, CancelResponse{ResponseID: next.responseID})
				next.cancelled = next.responseID
				next.muted = true
			}
			next.resetTurn()
			next.turnStart = e.At
			moveTo(StateListening)
		case StateIdle, StateListening:
			next.resetTurn()
			next.turnStart = e.At
			moveTo(StateListening)
		}

	case SpeechStopped:
		if next.State == StateListening || next.State == StateIdle {
			if next.turnStart.IsZero() {
				next.turnStart = e.At
			}
			moveTo(StateThinking)
		}

	case UserTranscript:
		if e.Text != "" && next.State != StateConnecting {
			next.userText = e.Text
			effects = append(effects, EmitTranscript{Role: RoleUser, Text: e.Text})
		}

	case ResponseStarted:
		if e.ResponseID != "" && e.ResponseID == next.cancelled {
			break
		}
		next.muted = false
		if next.State == StateThinking || next.State == StateSpeaking {
			next.responding = true
			if next.responseID == "" {
				next.responseID = e.ResponseID
			}
		}

	case ResponseEnded:
		// 被取消的回复结束后，上游不会再发送它的输出
		if next.muted && (e.ResponseID == "" || e.ResponseID == next.cancelled) {
			next.muted = false
		}

	case AudioReceived:
		if !next.accepts(e.ResponseID) || len(e.Samples) == 0 {
			break
		}
		if next.responseID == "" {
			next.responseID = e.ResponseID
		}
		next.responding = true
		next.playing = true
		moveTo(StateSpeaking)
		effects = append(effects, EnqueueAudio{Samples: e.Samples})

	case TranscriptReceived:
		if !next.accepts(e.ResponseID) || e.Text == "" {
			break
		}
		if next.responseID == "" {
			next.responseID = e.ResponseID
		}
		next.responding = true
		next.reply += e.Text
		effects = append(effects, EmitTranscript{Role: RoleAssistant, Text: e.Text})

	case AudioFinished:
		if !next.accepts(e.ResponseID) {
			break
		}
		next.audioDone = true
		if next.State == StateThinking || !next.playing {
			effects = append(effects, next.finalize(e.At))
			moveTo(StateIdle)
		}

	case PlaybackDrained:
		next.playing = false
		if next.State == StateSpeaking && next.audioDone {
			effects = append(effects, next.finalize(e.At))
			moveTo(StateIdle)
		}

	case ProtocolError:
		if next.playing {
			effects = append(effects, StopPlayback{})
		}
		effects = append(effects, ReportError{Message: e.Message})
		next.resetTurn()
		moveTo(StateIdle)

	case Disconnected:
		if next.playing {
			effects = append(effects, StopPlayback{})
		}
		next.resetTurn()
		next.cancelled = ""
		next.muted = false
		moveTo(StateIdle)
	}

	return next, effects
}

// accepts reports whether response output belongs to the current turn.
// Output carrying an id other than the cancelled one starts a new response.
func (m *Machine) accepts(responseID string) bool {
	if m.State != StateThinking && m.State != StateSpeaking {
		return false
	}
	if responseID == "" {
		return !m.muted
	}
	if responseID == m.cancelled {
		return false
	}
	m.muted = false
	return true
}

func (m *Machine) finalize(at time.Time) Effect {
	m.Turns++
	start := m.turnStart
	if start.IsZero() {
		start = at
	}
	rec := TurnRecord{
		Index:         m.Turns,
		UserText:      m.userText,
		AssistantText: m.reply,
		Start:         start,
		End:           at,
		ResponseTime:  at.Sub(start),
	}
	m.resetTurn()
	return FinalizeTurn{Turn: rec}
}

func (m *Machine) resetTurn() {
	m.turnStart = time.Time{}
	m.userText = ""
	m.reply = ""
	m.responseID = ""
	m.audioDone = false
	m.playing = false
	m.responding = false
}
