package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/models"
)

type OpenAIAnalyzer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIAnalyzer(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

const systemPrompt = `You are a workplace-communication reviewer for a chat server.
Given a conversation window and one message under review, judge whether the
message shows harassment-adjacent behavior toward the target: discrimination,
harassment, bullying, implicit bias, labeling, targeting, or otherwise
inappropriate conduct. Judge the message in its conversational context, not
in isolation. Answer in the language hinted when writing the reason and
suggestion.`

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req *Request) (*models.Verdict, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildPrompt(req),
				},
			},
			MaxTokens:   a.maxTokens,
			Temperature: float32(a.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		a.logger.Error("analyzer request failed", zap.Error(err))
		return nil, fmt.Errorf("analyzer request failed: %w", err)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	verdict := &models.Verdict{}
	if err := json.Unmarshal([]byte(content), verdict); err != nil {
		a.logger.Error("failed to parse analyzer response",
			zap.Error(err),
			zap.String("response", content))
		return nil, fmt.Errorf("failed to parse analyzer response: %w", err)
	}

	normalizeVerdict(verdict)
	return verdict, nil
}

func buildPrompt(req *Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Language hint: %s\n", req.LanguageHint)
	fmt.Fprintf(&sb, "Author: %s\n", req.AuthorLabel)
	if req.TargetLabel != "" {
		fmt.Fprintf(&sb, "Target: %s\n", req.TargetLabel)
	}
	if req.SignalSummary != "" {
		fmt.Fprintf(&sb, "\nLong-term signal between these users:\n%s\n", req.SignalSummary)
	}
	fmt.Fprintf(&sb, "\n%s\n", req.FormattedContext)
	fmt.Fprintf(&sb, "\nRaw message text: %s\n", req.RawMessageContent)

	sb.WriteString(`
Return a JSON object with this structure:
{
    "is_concerning": true or false,
    "severity": "low" | "medium" | "high",
    "issue_type": "discrimination" | "harassment" | "bullying" | "implicit_bias" | "labeling" | "targeting" | "inappropriate" | "none",
    "reason": "one-sentence explanation",
    "suggestion": "a kinder rewording the author could have used",
    "confidence": number between 0 and 1,
    "pattern_type": "isolated" | "repeated" | "escalating"
}`)

	return sb.String()
}

func normalizeVerdict(verdict *models.Verdict) {
	verdict.Severity = strings.ToLower(strings.TrimSpace(verdict.Severity))
	verdict.IssueType = strings.ToLower(strings.TrimSpace(verdict.IssueType))
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
}
