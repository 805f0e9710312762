package audio

import "sync"

// Sink plays one buffer at a time.
type Sink interface {
	// Play starts playing samples and calls done once they have finished.
	// The returned stop halts playback early; done may still fire afterwards and is ignored.
	Play(samples []float32, done func()) (stop func())
}

// Player plays buffers strictly in arrival order, one fully before the next.
type Player struct {
	sink      Sink
	onDrained func()

	mu        sync.Mutex
	queue     [][]float32
	playing   bool
	stop      func()
	gen       uint64
	stoppedAt uint64
}

// NewPlayer builds a player. onDrained runs every time the queue empties after playback.
func NewPlayer(sink Sink, onDrained func()) *Player {
	return &Player{sink: sink, onDrained: onDrained}
}

// Enqueue appends a buffer and starts playback if idle.
func (p *Player) Enqueue(samples []float32) {
	if len(samples) == 0 {
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, samples)
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.mu.Unlock()

	p.next()
}

// Stop discards queued audio and halts the active buffer. onDrained is not called.
func (p *Player) Stop() {
	p.mu.Lock()
	p.queue = nil
	p.playing = false
	p.gen++
	p.stoppedAt = p.gen
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Pending is the number of buffers waiting behind the active one.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Player) next() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	if len(p.queue) == 0 {
		p.playing = false
		p.stop = nil
		onDrained := p.onDrained
		p.mu.Unlock()

		if onDrained != nil {
			onDrained()
		}
		return
	}

	buf := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	stop := p.sink.Play(buf, func() { p.finished(gen) })

	p.mu.Lock()
	switch {
	case gen <= p.stoppedAt:
		// Stop ran while the sink was starting
		p.mu.Unlock()
		if stop != nil {
			stop()
		}
	case gen == p.gen && p.playing:
		p.stop = stop
		p.mu.Unlock()
	default:
		// done already fired synchronously
		p.mu.Unlock()
	}
}

func (p *Player) finished(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.playing {
		p.mu.Unlock()
		return
	}
	p.stop = nil
	p.mu.Unlock()

	p.next()
}
