package audio

import (
	"io"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// TimedSink writes PCM16 to an io.Writer and reports completion after the buffer's
// play time has elapsed, or immediately when realtime pacing is off.
type TimedSink struct {
	mu       sync.Mutex
	w        io.Writer
	rate     int
	realtime bool
}

func NewTimedSink(w io.Writer, rate int, realtime bool) *TimedSink {
	if rate <= 0 {
		rate = SampleRate
	}
	return &TimedSink{w: w, rate: rate, realtime: realtime}
}

func (s *TimedSink) Play(samples []float32, done func()) func() {
	s.mu.Lock()
	if _, err := s.w.Write(FloatToPCM16(samples)); err != nil {
		logx.Errorf("写入音频失败: %v", err)
	}
	s.mu.Unlock()

	if !s.realtime {
		t := time.AfterFunc(0, done)
		return func() { t.Stop() }
	}

	t := time.AfterFunc(Duration(len(samples), s.rate), done)
	return func() { t.Stop() }
}
