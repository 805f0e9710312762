package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// 发往上游的事件类型
const (
	TypeSessionUpdate  = "session.update"
	TypeAudioAppend    = "input_audio_buffer.append"
	TypeBufferClear    = "input_audio_buffer.clear"
	TypeResponseCreate = "response.create"
	TypeResponseCancel = "response.cancel"
)

const (
	AudioFormatPCM16 = "pcm16"
	VADServer        = "server_vad"
)

// NewEventID returns a unique id for an outbound client event.
func NewEventID() string {
	return "event_" + uuid.NewString()
}

type TurnDetection struct {
	Type string `json:"type"`
}

type SessionConfig struct {
	Modalities        []string      `json:"modalities"`
	Instructions      string        `json:"instructions"`
	Voice             string        `json:"voice"`
	Model             string        `json:"model,omitempty"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	TurnDetection     TurnDetection `json:"turn_detection"`
}

type SessionUpdate struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type AudioAppend struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

// Control is a client event without a payload (buffer clear, response create/cancel).
type Control struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
}

// NewSessionUpdate builds the session configuration for a voice session on the given model.
func NewSessionUpdate(model, voice, instructions string) SessionUpdate {
	return SessionUpdate{
		EventID: NewEventID(),
		Type:    TypeSessionUpdate,
		Session: SessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      instructions,
			Voice:             voice,
			Model:             model,
			InputAudioFormat:  AudioFormatPCM16,
			OutputAudioFormat: AudioFormatPCM16,
			TurnDetection:     TurnDetection{Type: VADServer},
		},
	}
}

// NewAudioAppend wraps one base64 PCM16 chunk.
func NewAudioAppend(audioB64 string) AudioAppend {
	return AudioAppend{EventID: NewEventID(), Type: TypeAudioAppend, Audio: audioB64}
}

func NewBufferClear() Control {
	return Control{EventID: NewEventID(), Type: TypeBufferClear}
}

func NewResponseCreate() Control {
	return Control{EventID: NewEventID(), Type: TypeResponseCreate}
}

// NewResponseCancel cancels the in-flight response. responseID may be empty.
func NewResponseCancel(responseID string) Control {
	return Control{EventID: NewEventID(), Type: TypeResponseCancel, ResponseID: responseID}
}

// 中继合成的错误类型
const (
	ErrorTypeConnectionError  = "connection_error"
	ErrorTypeConnectionClosed = "connection_closed"
	ErrorTypeQueueOverflow    = "queue_overflow"
)

type errorFrame struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

func encodeError(detail ErrorDetail) []byte {
	data, err := json.Marshal(errorFrame{Type: TypeError, Error: detail})
	if err != nil {
		// ErrorDetail only holds strings and a pre-encoded number
		panic(err)
	}
	return data
}

// ConnectionErrorFrame reports that the upstream connection failed.
func ConnectionErrorFrame(message string) []byte {
	return encodeError(ErrorDetail{Type: ErrorTypeConnectionError, Message: message})
}

// ConnectionClosedFrame reports an abnormal upstream close.
func ConnectionClosedFrame(code int, reason string) []byte {
	return encodeError(ErrorDetail{
		Type:    ErrorTypeConnectionClosed,
		Code:    json.RawMessage(strconv.Itoa(code)),
		Message: "Connection closed: " + reason,
	})
}

// QueueOverflowFrame reports that the client sent too much before the upstream was ready.
func QueueOverflowFrame(limit int) []byte {
	return encodeError(ErrorDetail{
		Type:    ErrorTypeQueueOverflow,
		Message: "Too many messages before upstream connection was ready (limit " + strconv.Itoa(limit) + ")",
	})
}

// IsTransportError reports whether the error was synthesized by the relay for a
// transport failure rather than sent by the upstream API.
func IsTransportError(d ErrorDetail) bool {
	switch d.Type {
	case ErrorTypeConnectionError, ErrorTypeConnectionClosed, ErrorTypeQueueOverflow:
		return true
	}
	return false
}
