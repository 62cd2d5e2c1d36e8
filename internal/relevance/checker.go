// Package relevance implements the optional AI relevance gate applied during
// ingestion. The gate is advisory: callers treat any error as "accept" so a
// misbehaving model service can never block the pipeline.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/altsignal/tickersent/internal/models"
)

const systemPrompt = "You are a financial analyst specializing in equity research and investment analysis."

const userPromptTemplate = `Analyze the following Reddit post to determine if it contains ANY financial or stock-related discussion.

Post Title: %s
Post Content: %s

Criteria for RELEVANT (be PERMISSIVE):
- ANY mention of stocks, companies, or investing
- Financial news or earnings discussion
- Market analysis or opinions
- Company updates or product discussions
- Investment ideas or stock picks
- Trading discussions
- Economic news or analysis

Criteria for IRRELEVANT (be RESTRICTIVE):
- Pure memes with no financial content
- Off-topic personal posts
- Non-financial technical discussions

Be generous with RELEVANT decisions. When in doubt, choose RELEVANT.

Respond with only a JSON object: {"decision": "RELEVANT"} or {"decision": "IRRELEVANT"}`

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Checker struct {
	client chatAPI
	model  string
}

type decision struct {
	Decision string `json:"decision"`
}

func NewChecker(client chatAPI, model string) *Checker {
	return &Checker{client: client, model: model}
}

// IsRelevant asks the model whether an item carries financial discussion.
// Items too short to judge are rejected without a call.
func (c *Checker) IsRelevant(ctx context.Context, item models.ContentItem) (bool, error) {
	if len(item.Title)+len(item.Body) < 50 {
		return false, nil
	}

	title := item.Title
	if len(title) > 200 {
		title = title[:200]
	}
	body := item.Body
	if len(body) > 800 {
		body = body[:800]
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   50,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, title, body)},
		},
	})
	if err != nil {
		return false, fmt.Errorf("relevance check failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	var d decision
	if err := json.Unmarshal([]byte(content), &d); err == nil {
		return strings.EqualFold(d.Decision, "RELEVANT"), nil
	}
	// Model occasionally answers in prose.
	return strings.Contains(strings.ToUpper(content), "RELEVANT") &&
		!strings.Contains(strings.ToUpper(content), "IRRELEVANT"), nil
}
