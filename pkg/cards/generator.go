package cards

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/pkg/provider"
)

// Generator asks an LLM provider for knowledge cards.
type Generator struct {
	llm      provider.LLMProvider
	model    string
	maxCards int
}

func NewGenerator(llm provider.LLMProvider, model string, maxCards int) *Generator {
	if maxCards <= 0 || maxCards > MaxCards {
		maxCards = MaxCards
	}
	return &Generator{llm: llm, model: model, maxCards: maxCards}
}

func (g *Generator) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Conversations) == 0 {
		return nil, ErrNoConversation
	}
	subjectName := req.Subject
	if subjectName == "" {
		subjectName = defaultSubject
	}
	persona := req.Persona
	if persona == "" {
		persona = defaultPersona
	}

	resp, err := g.llm.Chat(ctx, &provider.ChatRequest{
		Model: g.model,
		Messages: []*provider.Message{
			{Role: "system", Content: systemPrompt(subjectName, persona)},
			{Role: "user", Content: "请基于以下对话生成知识卡片：\n\n" + summarize(req.Conversations)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("generate cards via %s: %w", g.llm.Name(), err)
	}

	cards, err := Parse(resp.Text, g.maxCards)
	if err != nil {
		logx.WithContext(ctx).Errorf("知识卡片解析失败: %v, content=%q", err, resp.Text)
		return nil, err
	}
	return &Response{Cards: cards, Total: len(cards)}, nil
}
