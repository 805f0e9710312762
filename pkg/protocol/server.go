package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrEmptyFrame = errors.New("empty frame")

// 上游实时接口下发的事件类型
const (
	TypeSessionCreated           = "session.created"
	TypeSessionUpdated           = "session.updated"
	TypeSpeechStarted            = "input_audio_buffer.speech_started"
	TypeSpeechStopped            = "input_audio_buffer.speech_stopped"
	TypeAudioDelta               = "response.audio.delta"
	TypeAudioDone                = "response.audio.done"
	TypeTranscriptDelta          = "response.audio_transcript.delta"
	TypeTranscriptDone           = "response.audio_transcript.done"
	TypeInputTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	TypeResponseCreated          = "response.created"
	TypeResponseDone             = "response.done"
	TypeError                    = "error"
)

// ServerEvent is one decoded upstream event. The set of implementations is closed;
// anything unrecognised decodes to UnknownEvent.
type ServerEvent interface {
	EventType() string
	serverEvent()
}

type SessionEvent struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id,omitempty"`
	Session json.RawMessage `json:"session,omitempty"`
}

type SpeechStarted struct {
	EventID      string `json:"event_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	AudioStartMS int    `json:"audio_start_ms,omitempty"`
}

type SpeechStopped struct {
	EventID    string `json:"event_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	AudioEndMS int    `json:"audio_end_ms,omitempty"`
}

// AudioDelta carries one base64 PCM16 chunk of the response audio.
type AudioDelta struct {
	EventID    string `json:"event_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta"`
}

type AudioDone struct {
	EventID    string `json:"event_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
}

type TranscriptDelta struct {
	EventID    string `json:"event_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta"`
}

type TranscriptDone struct {
	EventID    string `json:"event_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// InputTranscriptCompleted is the server-side transcription of the user's speech.
type InputTranscriptCompleted struct {
	EventID    string `json:"event_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Transcript string `json:"transcript"`
}

// ResponseInfo identifies a response in response.created and response.done.
type ResponseInfo struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

// ResponseCreated marks the start of a new response; deltas after it belong to that response.
type ResponseCreated struct {
	EventID  string       `json:"event_id,omitempty"`
	Response ResponseInfo `json:"response"`
}

type ResponseDone struct {
	EventID  string       `json:"event_id,omitempty"`
	Response ResponseInfo `json:"response"`
}

// ErrorDetail is the body of an error event. Code is a number for relay close
// frames and a string for upstream errors.
type ErrorDetail struct {
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code,omitempty"`
	Message string          `json:"message"`
}

type ErrorEvent struct {
	EventID string      `json:"event_id,omitempty"`
	Error   ErrorDetail `json:"error"`
}

// UnknownEvent keeps frames whose type is not handled.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e SessionEvent) EventType() string { return e.Type }
func (SpeechStarted) EventType() string { return TypeSpeechStarted }
func (SpeechStopped) EventType() string { return TypeSpeechStopped }
func (AudioDelta) EventType() string { return TypeAudioDelta }
func (AudioDone) EventType() string { return TypeAudioDone }
func (TranscriptDelta) EventType() string { return TypeTranscriptDelta }
func (TranscriptDone) EventType() string { return TypeTranscriptDone }
func (InputTranscriptCompleted) EventType() string { return TypeInputTranscriptCompleted }
func (ResponseCreated) EventType() string { return TypeResponseCreated }
func (ResponseDone) EventType() string { return TypeResponseDone }
func (ErrorEvent) EventType() string { return TypeError }
func (e UnknownEvent) EventType() string { return e.Type }

func (SessionEvent) serverEvent() {}
func (SpeechStarted) serverEvent() {}
func (SpeechStopped) serverEvent() {}
func (AudioDelta) serverEvent() {}
func (AudioDone) serverEvent() {}
func (TranscriptDelta) serverEvent() {}
func (TranscriptDone) serverEvent() {}
func (InputTranscriptCompleted) serverEvent() {}
func (ResponseCreated) serverEvent() {}
func (ResponseDone) serverEvent() {}
func (ErrorEvent) serverEvent() {}
func (UnknownEvent) serverEvent() {}

// Text returns the most useful human readable description of the error.
func (d ErrorDetail) Text() string {
	if d.Message != "" {
		return d.Message
	}
	if d.Type != "" {
		return d.Type
	}
	return "未知错误"
}

// CloseCode returns the numeric close code carried by a connection_closed frame.
func (d ErrorDetail) CloseCode() (int, bool) {
	if len(d.Code) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(string(d.Code))
	if err != nil {
		return 0, false
	}
	return code, true
}

// DecodeServerEvent parses one upstream text frame.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyFrame
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid json frame: %w", err)
	}

	switch envelope.Type {
	case TypeSessionCreated, TypeSessionUpdated:
		return decodeAs[SessionEvent](data)
	case TypeSpeechStarted:
		return decodeAs[SpeechStarted](data)
	case TypeSpeechStopped:
		return decodeAs[SpeechStopped](data)
	case TypeAudioDelta:
		return decodeAs[AudioDelta](data)
	case TypeAudioDone:
		return decodeAs[AudioDone](data)
	case TypeTranscriptDelta:
		return decodeAs[TranscriptDelta](data)
	case TypeTranscriptDone:
		return decodeAs[TranscriptDone](data)
	case TypeInputTranscriptCompleted:
		return decodeAs[InputTranscriptCompleted](data)
	case TypeResponseCreated:
		return decodeAs[ResponseCreated](data)
	case TypeResponseDone:
		return decodeAs[ResponseDone](data)
	case TypeError:
		return decodeAs[ErrorEvent](data)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Type: envelope.Type, Raw: raw}, nil
	}
}

func decodeAs[T ServerEvent](data []byte) (ServerEvent, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		var zero T
		return nil, fmt.Errorf("invalid %s frame: %w", zero.EventType(), err)
	}
	return ev, nil
}

// PeekType extracts the type field without decoding the rest of the frame.
func PeekType(data []byte) (string, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		return "", false
	}
	return envelope.Type, true
}
