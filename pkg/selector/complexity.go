package selector

import (
	"strings"
	"unicode/utf8"
)

type keyword struct {
	text   string
	points int
}

// 复杂度关键词表，中英文混合，按子串匹配累加
var complexKeywords = []keyword{
	{"如果", 30},
	{"假设", 30},
	{"为什么", 20},
	{"如何", 20},
	{"怎样", 20},
	{"比较", 25},
	{"分析", 25},
	{"推理", 30},
	{"计算", 15},
	{"if", 30},
	{"suppose", 30},
	{"why", 20},
	{"how", 20},
	{"compare", 25},
	{"analyze", 25},
	{"reasoning", 30},
	{"calculate", 15},
}

// reasoningKeywords are the conditional/inference words cited in selection reasons.
var reasoningKeywords = []string{"如果", "假设", "推理", "if", "suppose", "reasoning"}

var (
	searchKeywords = []string{"搜索", "查", "search"}
	toolKeywords   = []string{"生成图片", "看图", "分析图", "generate image", "analyze image"}
)

const (
	maxLengthPoints = 20
	pointsPerTurn   = 5
	maxTurnPoints   = 30
	searchPoints    = 30
	toolPoints      = 40
	maxScore        = 100
)

// Complexity is the breakdown behind a complexity score.
type Complexity struct {
	Score       int
	Keywords    []string
	NeedsSearch bool
	NeedsTool   bool
}

// Score maps an utterance and the number of completed turns to [0,100].
func Score(utterance string, turns int) int {
	return Analyze(utterance, turns).Score
}

// Analyze computes the complexity score and reports which signals matched.
func Analyze(utterance string, turns int) Complexity {
	var c Complexity
	score := min(utf8.RuneCountInString(utterance), maxLengthPoints)

	lower := strings.ToLower(utterance)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw.text) {
			score += kw.points
			c.Keywords = append(c.Keywords, kw.text)
		}
	}

	if turns > 0 {
		score += min(turns*pointsPerTurn, maxTurnPoints)
	}

	if containsAny(lower, searchKeywords) {
		c.NeedsSearch = true
		score += searchPoints
	}
	if containsAny(lower, toolKeywords) {
		c.NeedsTool = true
		score += toolPoints
	}

	c.Score = clamp(score, 0, maxScore)
	return c
}

func hasReasoningKeyword(utterance string) bool {
	return containsAny(strings.ToLower(utterance), reasoningKeywords)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
