package selector

import (
	"bufio"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/unclewu3242592726/aitutor/pkg/model"
)

const (
	defaultMemoryGB = 4
	defaultCores    = 2
)

var mobilePattern = regexp.MustCompile(`(?i)mobile|android|iphone`)

// Signals are the raw capability hints of a device. Zero values mean unknown.
type Signals struct {
	UserAgent string  `json:"userAgent"`
	MemoryGB  float64 `json:"memoryGB"`
	Cores     int     `json:"cores"`
}

// SignalSource reports the device signals. ok is false when none are available.
type SignalSource func() (Signals, bool)

// Classify maps device signals to a tier.
func Classify(s Signals) model.DeviceTier {
	memory := s.MemoryGB
	if memory <= 0 {
		memory = defaultMemoryGB
	}
	cores := s.Cores
	if cores <= 0 {
		cores = defaultCores
	}

	if mobilePattern.MatchString(s.UserAgent) {
		if memory >= 6 {
			return model.DeviceMedium
		}
		return model.DeviceLow
	}

	switch {
	case cores >= 8 && memory >= 8:
		return model.DeviceHigh
	case cores >= 4 && memory >= 4:
		return model.DeviceMedium
	default:
		return model.DeviceLow
	}
}

// DeviceDetector classifies the local device once and caches the tier.
type DeviceDetector struct {
	source SignalSource

	mu     sync.Mutex
	cached model.DeviceTier
}

// NewDeviceDetector builds a detector. A nil source behaves as "signals unavailable".
func NewDeviceDetector(source SignalSource) *DeviceDetector {
	return &DeviceDetector{source: source}
}

func (d *DeviceDetector) Detect() model.DeviceTier {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != "" {
		return d.cached
	}

	tier := model.DeviceMedium
	if d.source != nil {
		if s, ok := d.source(); ok {
			tier = Classify(s)
		}
	}
	d.cached = tier

	return tier
}

// ClearCache forces the next Detect to re-read the signals.
func (d *DeviceDetector) ClearCache() {
	d.mu.Lock()
	d.cached = ""
	d.mu.Unlock()
}

// HostSignals reads the core count and total memory of the current host.
func HostSignals() (Signals, bool) {
	s := Signals{Cores: runtime.NumCPU()}
	if gb, ok := hostMemoryGB("/proc/meminfo"); ok {
		s.MemoryGB = gb
	}
	return s, s.Cores > 0
}

func hostMemoryGB(path string) (float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb / (1024 * 1024), true
	}
	return 0, false
}
