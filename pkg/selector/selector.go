package selector

import (
	"fmt"
	"strings"

	"github.com/unclewu3242592726/aitutor/pkg/model"
)

// DefaultThreshold is the post-penalty score at or above which the heavy variant is chosen.
const DefaultThreshold = 50

const manualReason = "用户手动指定模型"

// Preferences carries the user-controlled inputs to a selection.
type Preferences struct {
	DataSaver      bool
	PreferredModel model.ModelVariant
}

// Context is the per-turn input to Select. It is rebuilt before every turn.
type Context struct {
	Utterance   string
	Turns       int
	LatencyMS   int
	Device      model.DeviceTier
	Preferences Preferences
}

// Result is the outcome of one selection.
type Result struct {
	Model  model.ModelVariant `json:"model"`
	Score  int                `json:"score"`
	Reason string             `json:"reason"`
}

// Selector picks a model variant per turn. It is stateless and safe for concurrent use.
type Selector struct {
	threshold int
	heavy     model.ModelVariant
	light     model.ModelVariant
}

func NewSelector() *Selector {
	return &Selector{
		threshold: DefaultThreshold,
		heavy:     model.ModelStepAudio2,
		light:     model.ModelStepAudio2Mini,
	}
}

// Select applies the manual override, then complexity scoring, environment penalties
// and the threshold rule.
func (s *Selector) Select(c Context) Result {
	if c.Preferences.PreferredModel != "" {
		return Result{
			Model:  c.Preferences.PreferredModel,
			Score:  0,
			Reason: manualReason,
		}
	}

	score := Score(c.Utterance, c.Turns)
	score = max(0, score-Penalty(c.LatencyMS, c.Device, c.Preferences.DataSaver))

	chosen := s.light
	if score >= s.threshold {
		chosen = s.heavy
	}

	return Result{
		Model:  chosen,
		Score:  score,
		Reason: s.reason(chosen, score, c),
	}
}

// Penalty sums the environment penalties for the given conditions.
func Penalty(latencyMS int, device model.DeviceTier, dataSaver bool) int {
	penalty := 0

	// 网络延迟惩罚
	if latencyMS > 2000 {
		penalty += 30
	} else if latencyMS > 1000 {
		penalty += 15
	}

	// 设备性能惩罚
	switch device {
	case model.DeviceLow:
		penalty += 20
	case model.DeviceMedium:
		penalty += 10
	}

	// 省流量模式
	if dataSaver {
		penalty += 40
	}

	return penalty
}

func (s *Selector) reason(chosen model.ModelVariant, score int, c Context) string {
	var reasons []string
	if chosen == s.heavy {
		if score >= 70 {
			reasons = append(reasons, "高复杂度问题")
		}
		if hasReasoningKeyword(c.Utterance) {
			reasons = append(reasons, "包含推理分析")
		}
		if c.Turns > 5 {
			reasons = append(reasons, "深度对话")
		}
	} else {
		if score < 30 {
			reasons = append(reasons, "简单问题")
		}
		if c.LatencyMS > 1000 {
			reasons = append(reasons, "网络较慢")
		}
		if c.Device == model.DeviceLow {
			reasons = append(reasons, "设备性能")
		}
		if c.Preferences.DataSaver {
			reasons = append(reasons, "省流量模式")
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "综合评估")
	}

	return fmt.Sprintf("选择 %s: %s (分数: %d)", chosen, strings.Join(reasons, "、"), score)
}
