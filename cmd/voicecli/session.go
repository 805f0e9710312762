package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/pkg/audio"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/realtime"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
)

var errTurnTimeout = errors.New("timed out waiting for the assistant")

// speaker 把若干段音频依次当作麦克风输入，每段等待一轮对话结束
type speaker struct {
	client  *realtime.Client
	chunk   time.Duration
	silence time.Duration
	timeout time.Duration

	listening chan struct{}
	turns     chan realtime.TurnRecord
	ready     bool
}

func newSpeaker(c Config) *speaker {
	return &speaker{
		chunk:     c.ChunkDuration,
		silence:   c.TrailSilence,
		timeout:   c.TurnTimeout,
		listening: make(chan struct{}, 1),
		turns:     make(chan realtime.TurnRecord, 8),
	}
}

// handler 回调运行在客户端事件循环里，只做非阻塞投递
func (s *speaker) handler() realtime.Handler {
	return realtime.Handler{
		OnStateChange: func(from, to realtime.TurnState) {
			logx.Debugf("状态 %s -> %s", from, to)
			if to == realtime.StateListening {
				select {
				case s.listening <- struct{}{}:
				default:
				}
			}
		},
		OnTranscript: func(role realtime.Role, text string) {
			fmt.Printf("[%s] %s\n", role, text)
		},
		OnTurn: func(turn realtime.TurnRecord) {
			select {
			case s.turns <- turn:
			default:
			}
		},
		OnModelChange: func(result selector.Result) {
			logx.Infow("切换模型",
				logx.Field("model", string(result.Model)),
				logx.Field("score", result.Score),
				logx.Field("reason", result.Reason))
		},
		OnCards: func(list []cards.Card) {
			for _, card := range list {
				fmt.Printf("%s %s：%s\n", card.Icon, card.Title, card.Description)
			}
		},
		OnReconnect: func(attempt, max int) {
			logx.Infof("正在重连 (%d/%d)", attempt, max)
		},
		OnError: func(message string) {
			logx.Errorf("会话错误: %s", message)
		},
	}
}

// speak streams one utterance followed by silence, then waits for the turn to finish.
func (s *speaker) speak(ctx context.Context, samples []float32) (realtime.TurnRecord, error) {
	if err := s.waitListening(ctx); err != nil {
		return realtime.TurnRecord{}, err
	}

	trail := make([]float32, int(s.silence.Seconds()*audio.SampleRate))
	if err := s.stream(ctx, append(samples, trail...)); err != nil {
		return realtime.TurnRecord{}, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return realtime.TurnRecord{}, ctx.Err()
	case <-timer.C:
		return realtime.TurnRecord{}, errTurnTimeout
	case turn := <-s.turns:
		return turn, nil
	}
}

// waitListening 只在首轮等待连接建立；之后一直处于采集状态
func (s *speaker) waitListening(ctx context.Context) error {
	if s.ready || s.client.State() == realtime.StateListening {
		s.ready = true
		return nil
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTurnTimeout
	case <-s.listening:
		s.ready = true
		return nil
	}
}

// stream 按实际时长分块推送，模拟麦克风采集节奏
func (s *speaker) stream(ctx context.Context, samples []float32) error {
	size := int(s.chunk.Seconds() * audio.SampleRate)
	if size <= 0 {
		size = len(samples)
	}

	ticker := time.NewTicker(s.chunk)
	defer ticker.Stop()

	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		if err := s.client.SendAudio(samples[start:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
