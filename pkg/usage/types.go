package usage

import (
	"errors"
	"fmt"

	"github.com/unclewu3242592726/aitutor/pkg/model"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrNotFound         = errors.New("usage record not found")
	ErrMalformedRecords = errors.New("malformed usage records")
)

// DefaultCapacity is the maximum number of records kept by a Tracker.
const DefaultCapacity = 1000

// Record is one persisted model selection outcome.
type Record struct {
	Timestamp         int64              `json:"timestamp"` // unix ms
	ModelUsed         model.ModelVariant `json:"modelUsed"`
	ComplexityScore   int                `json:"complexityScore"`
	ResponseTime      int64              `json:"responseTime"`   // ms, 从轮次开始到播放结束
	NetworkLatency    int                `json:"networkLatency"` // ms, 决策时的滚动延迟
	DevicePerformance model.DeviceTier   `json:"devicePerformance"`
	Reason            string             `json:"reason"`
	UserSatisfaction  model.Satisfaction `json:"userSatisfaction,omitempty"`
}

// Validate reports the first field holding a value outside its enumeration.
func (r Record) Validate() error {
	switch {
	case !r.ModelUsed.Valid():
		return fmt.Errorf("unknown modelUsed %q", r.ModelUsed)
	case !r.DevicePerformance.Valid():
		return fmt.Errorf("unknown devicePerformance %q", r.DevicePerformance)
	case r.UserSatisfaction != "" && !r.UserSatisfaction.Valid():
		return fmt.Errorf("unknown userSatisfaction %q", r.UserSatisfaction)
	}
	return nil
}

// SatisfactionRate is the percentage of a model's records carrying each label.
type SatisfactionRate struct {
	Good    int `json:"good"`
	Neutral int `json:"neutral"`
	Bad     int `json:"bad"`
}

// ModelStats aggregates the records of one model variant.
type ModelStats struct {
	Count                  int              `json:"count"`
	UsageRate              float64          `json:"usageRate"` // 0-1
	AverageResponseTime    float64          `json:"averageResponseTime"`
	AverageComplexityScore float64          `json:"averageComplexityScore"`
	Satisfaction           SatisfactionRate `json:"satisfaction"`
}

// Report summarises the whole log.
type Report struct {
	TotalConversations    int                               `json:"totalConversations"`
	Models                map[model.ModelVariant]ModelStats `json:"models"`
	AverageNetworkLatency float64                           `json:"averageNetworkLatency"`
	CostSavings           float64                           `json:"costSavings"` // 相对全部使用 step-audio-2 的节省百分比
}
