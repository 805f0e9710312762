package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/pkg/model"
)

// Tracker is the bounded, persisted log of model selection outcomes.
// Every mutation rewrites the whole log through the Store.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	capacity int
	records  []Record
}

// NewTracker builds a tracker and restores the persisted log. A corrupt or unreachable
// store is logged and the tracker starts empty.
func NewTracker(ctx context.Context, store Store, capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	t := &Tracker{
		store:    store,
		capacity: capacity,
	}

	records, err := store.Load(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("加载使用记录失败: %v", err)
		return t
	}
	t.records = trim(records, capacity)

	return t
}

// Track appends one record, evicting the oldest when over capacity, and persists the log.
// The record stays in memory even if persisting fails.
func (t *Tracker) Track(ctx context.Context, r Record) error {
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, r)
	if len(t.records) > t.capacity {
		t.records = t.records[len(t.records)-t.capacity:]
	}

	return t.saveLocked(ctx)
}

// Rate attaches a satisfaction label to the record with the given timestamp.
func (t *Tracker) Rate(ctx context.Context, timestamp int64, s model.Satisfaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].Timestamp == timestamp {
			t.records[i].UserSatisfaction = s
			return t.saveLocked(ctx)
		}
	}

	return ErrNotFound
}

// Recent returns up to n of the newest records, oldest first. n <= 0 means 10.
func (t *Tracker) Recent(n int) []Record {
	if n <= 0 {
		n = 10
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := max(0, len(t.records)-n)
	out := make([]Record, len(t.records)-start)
	copy(out, t.records[start:])
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tracker) Capacity() int {
	return t.capacity
}

// Clear drops every record and persists the empty log.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = nil
	return t.saveLocked(ctx)
}

// Export returns the log as indented JSON.
func (t *Tracker) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.records
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// Import replaces the log with the given JSON array, keeping the newest records up to capacity.
func (t *Tracker) Import(ctx context.Context, data []byte) error {
	records, err := decodeRecords(data)
	if err != nil {
		return err
	}
	// null 解码为 nil，不能当作清空
	if records == nil {
		return fmt.Errorf("%w: expected a json array", ErrMalformedRecords)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrMalformedRecords, i, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = trim(records, t.capacity)
	return t.saveLocked(ctx)
}

// Report computes aggregate statistics over the current log.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	records := make([]Record, len(t.records))
	copy(records, t.records)
	t.mu.Unlock()

	return buildReport(records)
}

func (t *Tracker) saveLocked(ctx context.Context) error {
	records := t.records
	if records == nil {
		records = []Record{}
	}
	if err := t.store.Save(ctx, records); err != nil {
		logx.WithContext(ctx).Errorf("保存使用记录失败: %v", err)
		return err
	}
	return nil
}

func trim(records []Record, capacity int) []Record {
	if len(records) > capacity {
		records = records[len(records)-capacity:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

func buildReport(records []Record) Report {
	report := Report{
		TotalConversations: len(records),
		Models:             make(map[model.ModelVariant]ModelStats, len(model.Models)),
	}
	for _, m := range model.Models {
		report.Models[m.ID] = ModelStats{}
	}
	if len(records) == 0 {
		return report
	}

	byModel := make(map[model.ModelVariant][]Record)
	latencySum := 0
	for _, r := range records {
		byModel[r.ModelUsed] = append(byModel[r.ModelUsed], r)
		latencySum += r.NetworkLatency
	}

	total := float64(len(records))
	for m, rs := range byModel {
		report.Models[m] = modelStats(rs, total)
	}
	report.AverageNetworkLatency = round2(float64(latencySum) / total)
	report.CostSavings = costSavings(byModel)

	return report
}

func modelStats(records []Record, total float64) ModelStats {
	var responseSum, complexitySum int64
	var good, neutral, bad int
	for _, r := range records {
		responseSum += r.ResponseTime
		complexitySum += int64(r.ComplexityScore)
		switch r.UserSatisfaction {
		case model.SatisfactionGood:
			good++
		case model.SatisfactionNeutral:
			neutral++
		case model.SatisfactionBad:
			bad++
		}
	}

	n := float64(len(records))
	return ModelStats{
		Count:                  len(records),
		UsageRate:              float64(len(records)) / total,
		AverageResponseTime:    round2(float64(responseSum) / n),
		AverageComplexityScore: round2(float64(complexitySum) / n),
		Satisfaction: SatisfactionRate{
			Good:    percent(good, n),
			Neutral: percent(neutral, n),
			Bad:     percent(bad, n),
		},
	}
}

// costSavings compares the actual spend with running every turn on the most expensive model.
func costSavings(byModel map[model.ModelVariant][]Record) float64 {
	heavy := model.CostPerMinute(model.ModelStepAudio2)
	total := 0
	actual := 0.0
	for m, rs := range byModel {
		total += len(rs)
		actual += float64(len(rs)) * model.CostPerMinute(m)
	}
	full := float64(total) * heavy
	if full == 0 {
		return 0
	}

	return round2((full - actual) / full * 100)
}

func percent(count int, n float64) int {
	return int(math.Round(float64(count) / n * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
