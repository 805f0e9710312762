package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/unclewu3242592726/aitutor/pkg/subject"
)

const (
	MaxCards    = 5
	DefaultIcon = "📝"

	defaultSubject = "知识"
	defaultPersona = "助手"
)

var (
	ErrNoConversation = errors.New("缺少对话内容")
	ErrMalformedCards = errors.New("知识卡片格式错误")
)

// Card is one knowledge card extracted from a conversation.
type Card struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Icon        string   `json:"icon,omitempty"`
	Highlighted bool     `json:"highlighted,omitempty"`
}

type Request struct {
	Conversations []subject.Turn `json:"conversations"`
	Subject       string         `json:"subject,omitempty"`
	Persona       string         `json:"persona,omitempty"`
}

type Response struct {
	Cards []Card `json:"cards"`
	Total int    `json:"total"`
}

// rawCard 模型输出里的卡片，字段都可能缺失
type rawCard struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        json.RawMessage `json:"tags"`
	Icon        string          `json:"icon"`
}

var arrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

// Parse turns a model reply into normalised cards. The reply may be a bare JSON array
// or prose wrapping one.
func Parse(content string, limit int) ([]Card, error) {
	if limit <= 0 || limit > MaxCards {
		limit = MaxCards
	}

	var raw []rawCard
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		block := arrayPattern.FindString(content)
		if block == "" {
			return nil, ErrMalformedCards
		}
		if err := json.Unmarshal([]byte(block), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCards, err)
		}
	}

	cards := make([]Card, 0, len(raw))
	for _, rc := range raw {
		if rc.Title == "" || rc.Description == "" {
			continue
		}
		card := Card{
			ID:          "card-" + uuid.NewString(),
			Title:       rc.Title,
			Description: rc.Description,
			Tags:        parseTags(rc.Tags),
			Icon:        rc.Icon,
			Highlighted: len(cards) == 0,
		}
		if card.Icon == "" {
			card.Icon = DefaultIcon
		}
		cards = append(cards, card)
		if len(cards) == limit {
			break
		}
	}
	return cards, nil
}

func parseTags(raw json.RawMessage) []string {
	var tags []string
	if len(raw) == 0 || json.Unmarshal(raw, &tags) != nil {
		return []string{}
	}
	return tags
}

func summarize(turns []subject.Turn) string {
	parts := make([]string, 0, len(turns))
	for i, t := range turns {
		parts = append(parts, fmt.Sprintf("【第%d轮】\n用户：%s\n助手：%s", i+1, t.UserMessage, t.AIResponse))
	}
	return strings.Join(parts, "\n\n")
}

func systemPrompt(subjectName, persona string) string {
	return fmt.Sprintf(`你是%s%s。请基于以下对话内容，生成3-5张知识卡片。

要求：
1. 每张卡片包含：标题（简短）、描述（精炼要点）、标签（2-4个关键词）
2. 卡片应该涵盖对话中的核心知识点
3. 标题要简洁明了（5-10字）
4. 描述要精炼准确（50-80字）
5. 标签要涵盖关键概念

请以JSON格式返回，格式如下：
[
  {
    "title": "知识标题",
    "description": "知识描述",
    "tags": ["标签1", "标签2", "标签3"]
  }
]`, subjectName, persona)
}
