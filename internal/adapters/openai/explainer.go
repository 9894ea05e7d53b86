// Package openai generates human-readable explanations for predictions.
// The classifier itself never calls out; explanations are an optional
// boundary feature and the service runs fine without an API key.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/utils"
)

// Explainer asks an LLM why an email belongs to its predicted category.
type Explainer struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	maxBodySize int
	logger      *zap.Logger
}

// NewExplainer creates a new OpenAI-backed explainer
func NewExplainer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	maxBodySize int,
	logger *zap.Logger,
) *Explainer {
	return &Explainer{
		client:      openai.NewClient(apiKey),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

const explainPrompt = `An email classifier assigned the category %q with confidence %.2f to the email below.
Explain briefly, in plain language, which characteristics of the email support this category.

Subject: %s
Body:
%s`

// Explain produces a short explanation for a prediction.
func (e *Explainer) Explain(ctx context.Context, email *core.RawEmail, pred *core.Prediction) (string, error) {
	body := utils.TruncateText(utils.SanitizeUTF8(email.Body), e.maxBodySize)
	prompt := fmt.Sprintf(explainPrompt, pred.Label, pred.Confidence, email.Subject, body)

	req := openai.ChatCompletionRequest{
		Model: e.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You explain email classification results. Be concise and concrete.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to generate explanation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("explanation response contained no choices")
	}

	e.logger.Debug("Generated explanation",
		zap.String("label", pred.Label),
		zap.String("model", e.modelName))

	return resp.Choices[0].Message.Content, nil
}
