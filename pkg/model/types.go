package model

import "strings"

// ModelVariant identifies one of the two realtime speech model configurations.
type ModelVariant string

const (
	// ModelStepAudio2 is the higher-capability variant.
	ModelStepAudio2 ModelVariant = "step-audio-2"
	// ModelStepAudio2Mini is the lighter, faster variant.
	ModelStepAudio2Mini ModelVariant = "step-audio-2-mini"
)

// DeviceTier is the coarse performance class of the local device.
type DeviceTier string

const (
	DeviceHigh   DeviceTier = "high"
	DeviceMedium DeviceTier = "medium"
	DeviceLow    DeviceTier = "low"
)

// Satisfaction is an optional user label attached to a usage record.
type Satisfaction string

const (
	SatisfactionGood    Satisfaction = "good"
	SatisfactionNeutral Satisfaction = "neutral"
	SatisfactionBad     Satisfaction = "bad"
)

// Voice identifies an output voice.
type Voice string

const (
	VoiceQingChunShaoNv Voice = "qingchunshaonv"
	VoiceWenRouNanSheng Voice = "wenrounansheng"
)

// ModelInfo describes a selectable model variant
type ModelInfo struct {
	ID            ModelVariant `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	CostPerMinute float64      `json:"costPerMinute"`
	Recommended   bool         `json:"recommended"`
}

// VoiceInfo describes a selectable voice
type VoiceInfo struct {
	ID          Voice  `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"` // male|female
	Description string `json:"description,omitempty"`
}

// 模型目录，费用单位为 元/分钟
var Models = []ModelInfo{
	{
		ID:            ModelStepAudio2,
		Name:          "Step Audio 2",
		Description:   "推荐",
		CostPerMinute: 0.03,
		Recommended:   true,
	},
	{
		ID:            ModelStepAudio2Mini,
		Name:          "Step Audio 2 Mini",
		Description:   "快速模式",
		CostPerMinute: 0.02,
	},
}

var Voices = []VoiceInfo{
	{
		ID:          VoiceQingChunShaoNv,
		Name:        "青春少女",
		Gender:      "female",
		Description: "活泼可爱的年轻女声",
	},
	{
		ID:          VoiceWenRouNanSheng,
		Name:        "温柔男声",
		Gender:      "male",
		Description: "温和稳重的男声",
	},
}

const (
	DefaultModel = ModelStepAudio2
	DefaultVoice = VoiceQingChunShaoNv
)

// Valid reports whether m is one of the known variants.
func (m ModelVariant) Valid() bool {
	return m == ModelStepAudio2 || m == ModelStepAudio2Mini
}

// Valid reports whether v is one of the known voices.
func (v Voice) Valid() bool {
	return v == VoiceQingChunShaoNv || v == VoiceWenRouNanSheng
}

// Valid reports whether t is a known tier.
func (t DeviceTier) Valid() bool {
	return t == DeviceHigh || t == DeviceMedium || t == DeviceLow
}

// Valid reports whether s is a known satisfaction label.
func (s Satisfaction) Valid() bool {
	return s == SatisfactionGood || s == SatisfactionNeutral || s == SatisfactionBad
}

// ParseModel normalises a model id. ok is false for unknown ids.
func ParseModel(id string) (ModelVariant, bool) {
	m := ModelVariant(strings.ToLower(strings.TrimSpace(id)))
	return m, m.Valid()
}

// CoerceVoice returns v if it is valid, otherwise DefaultVoice and false.
func CoerceVoice(v string) (Voice, bool) {
	voice := Voice(strings.TrimSpace(v))
	if voice.Valid() {
		return voice, true
	}
	return DefaultVoice, false
}

func GetModel(id ModelVariant) (ModelInfo, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

func GetVoice(id Voice) (VoiceInfo, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return VoiceInfo{}, false
}

// CostPerMinute returns the catalog price for m, or 0 if unknown.
func CostPerMinute(m ModelVariant) float64 {
	info, ok := GetModel(m)
	if !ok {
		return 0
	}
	return info.CostPerMinute
}
