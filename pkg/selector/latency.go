package selector

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/timex"
	"github.com/zeromicro/go-zero/rest/httpc"
)

const (
	// UnreachableLatencyMS is returned by Measure when the probe fails or times out.
	UnreachableLatencyMS = 9999

	DefaultProbeURL     = "https://api.stepfun.com/v1/models"
	DefaultProbeTimeout = 5 * time.Second
	DefaultProbeWindow  = 5
)

// ProbeOption configures a LatencyProbe.
type ProbeOption func(*LatencyProbe)

// WithProbeTimeout bounds each probe request.
func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(p *LatencyProbe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProbeWindow sets how many recent samples are averaged.
func WithProbeWindow(n int) ProbeOption {
	return func(p *LatencyProbe) {
		if n > 0 {
			p.window = n
		}
	}
}

// WithProbeClient replaces the HTTP client used for probing.
func WithProbeClient(cli *http.Client) ProbeOption {
	return func(p *LatencyProbe) {
		if cli != nil {
			p.cli = cli
		}
	}
}

// LatencyProbe measures round-trip time to the upstream API host and keeps a rolling average.
type LatencyProbe struct {
	url     string
	timeout time.Duration
	window  int
	cli     *http.Client
	service httpc.Service

	mu      sync.Mutex
	samples []int
}

func NewLatencyProbe(url string, opts ...ProbeOption) *LatencyProbe {
	if url == "" {
		url = DefaultProbeURL
	}

	p := &LatencyProbe{
		url:     url,
		timeout: DefaultProbeTimeout,
		window:  DefaultProbeWindow,
		cli:     &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.service = httpc.NewServiceWithClient("latency-probe", p.cli)

	return p
}

// Measure issues one HEAD request and returns that request's own latency in ms, not the
// window average; use Average for the smoothed value. On failure it returns
// UnreachableLatencyMS and records nothing; on success the sample joins the rolling window.
func (p *LatencyProbe) Measure(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		logx.WithContext(ctx).Errorf("构建延迟探测请求失败: %v", err)
		return UnreachableLatencyMS
	}

	start := timex.Now()
	resp, err := p.service.DoRequest(req)
	if err != nil {
		logx.WithContext(ctx).Infof("延迟探测失败: %v", err)
		return UnreachableLatencyMS
	}
	resp.Body.Close()

	latency := int(timex.Since(start).Milliseconds())
	p.record(latency)

	return latency
}

// Average returns the rounded mean of the window, 0 when no sample exists.
func (p *LatencyProbe) Average() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range p.samples {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(p.samples))))
}

// Samples returns a copy of the current window, oldest first.
func (p *LatencyProbe) Samples() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.samples))
	copy(out, p.samples)
	return out
}

// Clear drops all samples.
func (p *LatencyProbe) Clear() {
	p.mu.Lock()
	p.samples = nil
	p.mu.Unlock()
}

// Run measures every interval until ctx is done.
func (p *LatencyProbe) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Measure(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Measure(ctx)
		}
	}
}

func (p *LatencyProbe) record(ms int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, ms)
	if len(p.samples) > p.window {
		p.samples = p.samples[len(p.samples)-p.window:]
	}
}
