package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerEvent(t *testing.T) {
	tests := []struct {
		raw  string
		want ServerEvent
	}{
		{
			raw:  `{"type":"session.created","event_id":"e1","session":{"id":"s1"}}`,
			want: SessionEvent{Type: TypeSessionCreated, EventID: "e1", Session: json.RawMessage(`{"id":"s1"}`)},
		},
		{
			raw:  `{"type":"input_audio_buffer.speech_started","item_id":"i1","audio_start_ms":120}`,
			want: SpeechStarted{ItemID: "i1", AudioStartMS: 120},
		},
		{
			raw:  `{"type":"input_audio_buffer.speech_stopped"}`,
			want: SpeechStopped{},
		},
		{
			raw:  `{"type":"response.audio.delta","response_id":"r1","delta":"AAA="}`,
			want: AudioDelta{ResponseID: "r1", Delta: "AAA="},
		},
		{
			raw:  `{"type":"response.audio_transcript.delta","response_id":"r1","delta":"你好"}`,
			want: TranscriptDelta{ResponseID: "r1", Delta: "你好"},
		},
		{
			raw:  `{"type":"response.audio.done","response_id":"r1"}`,
			want: AudioDone{ResponseID: "r1"},
		},
		{
			raw:  `{"type":"conversation.item.input_audio_transcription.completed","transcript":"为什么"}`,
			want: InputTranscriptCompleted{Transcript: "为什么"},
		},
		{
			raw:  `{"type":"response.created","event_id":"e7","response":{"id":"r2","status":"in_progress"}}`,
			want: ResponseCreated{EventID: "e7", Response: ResponseInfo{ID: "r2", Status: "in_progress"}},
		},
		{
			raw:  `{"type":"response.done","response":{"status":"cancelled"}}`,
			want: ResponseDone{Response: ResponseInfo{Status: "cancelled"}},
		},
	}

	for _, tt := range tests {
		got, err := DecodeServerEvent([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeServerEventError(t *testing.T) {
	ev, err := DecodeServerEvent([]byte(`{"type":"error","error":{"type":"invalid_request_error","code":"bad_voice","message":"voice not supported"}}`))
	require.NoError(t, err)

	e, ok := ev.(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "voice not supported", e.Error.Text())
	assert.False(t, IsTransportError(e.Error))
	_, ok = e.Error.CloseCode()
	assert.False(t, ok)
}

func TestDecodeServerEventUnknownAndInvalid(t *testing.T) {
	ev, err := DecodeServerEvent([]byte(`{"type":"rate_limits.updated","rate_limits":[]}`))
	require.NoError(t, err)
	unknown, ok := ev.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "rate_limits.updated", unknown.EventType())
	assert.Contains(t, string(unknown.Raw), "rate_limits")

	_, err = DecodeServerEvent(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = DecodeServerEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeServerEvent([]byte(`{"type":"response.audio.delta","delta":42}`))
	assert.Error(t, err)
}

func TestRelayFramesRoundTrip(t *testing.T) {
	ev, err := DecodeServerEvent(ConnectionClosedFrame(1006, "abnormal"))
	require.NoError(t, err)
	e := ev.(ErrorEvent)
	assert.Equal(t, ErrorTypeConnectionClosed, e.Error.Type)
	assert.Equal(t, "Connection closed: abnormal", e.Error.Message)
	code, ok := e.Error.CloseCode()
	require.True(t, ok)
	assert.Equal(t, 1006, code)
	assert.True(t, IsTransportError(e.Error))

	assert.JSONEq(t,
		`{"type":"error","error":{"type":"connection_error","message":"dial tcp: refused"}}`,
		string(ConnectionErrorFrame("dial tcp: refused")))

	assert.Contains(t, string(QueueOverflowFrame(8)), `"queue_overflow"`)
}

func TestClientEvents(t *testing.T) {
	update := NewSessionUpdate("step-audio-2-mini", "qingchunshaonv", "你是一位老师")
	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event_id":"`+update.EventID+`",
		"type":"session.update",
		"session":{
			"modalities":["text","audio"],
			"instructions":"你是一位老师",
			"voice":"qingchunshaonv",
			"model":"step-audio-2-mini",
			"input_audio_format":"pcm16",
			"output_audio_format":"pcm16",
			"turn_detection":{"type":"server_vad"}
		}
	}`, string(data))

	seen := map[string]bool{}
	for _, id := range []string{
		update.EventID,
		NewAudioAppend("AAA=").EventID,
		NewBufferClear().EventID,
		NewResponseCreate().EventID,
		NewResponseCancel("r1").EventID,
	} {
		assert.True(t, strings.HasPrefix(id, "event_"))
		assert.False(t, seen[id], "event ids must be unique")
		seen[id] = true
	}

	typ, ok := PeekType([]byte(`{"type":"response.create"}`))
	assert.True(t, ok)
	assert.Equal(t, TypeResponseCreate, typ)
	_, ok = PeekType([]byte(`binary?`))
	assert.False(t, ok)
}
