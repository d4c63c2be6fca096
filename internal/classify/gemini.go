package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

const classificationPrompt = `You are an expert email classifier for sales campaigns. Analyze the following email reply and classify the sender's interest level.

EMAIL DETAILS:
Subject: %s
From: %s
Body: %s

CONVERSATION HISTORY:
%s

CLASSIFICATION CATEGORIES:
1. "not_interested" - Clear rejection, unsubscribe requests, negative responses
2. "maybe_interested" - Neutral responses, requests for more information, questions about timing, or polite deferrals
3. "interested" - Positive responses, requests for meetings, pricing inquiries, or clear buying signals

ANALYSIS REQUIREMENTS:
- Consider the tone, language, and specific words used
- Look for buying signals like "pricing", "demo", "meeting", "interested"
- Identify rejection signals like "not interested", "remove", "unsubscribe"
- Account for polite but non-committal responses
- Consider context clues from the subject line and earlier messages

Respond with a JSON object only.`

// geminiResponse is the JSON shape the model is instructed to return.
type geminiResponse struct {
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	Keywords       []string `json:"keywords"`
	SentimentScore *float64 `json:"sentiment_score"`
}

// GeminiClassifier classifies replies with the Gemini API in structured
// output mode.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGeminiClassifier connects to the Gemini API. The model name comes from
// configuration so deployments can pick a tier without a rebuild.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, log *logger.Logger) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, apperr.Validation("gemini api key is required").WithOp("classify.NewGeminiClassifier")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "creating gemini client", err).WithOp("classify.NewGeminiClassifier")
	}

	return &GeminiClassifier{client: client, model: model, log: log}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, msg domain.InboundMessage, threadContext string) (domain.ClassificationResult, error) {
	if threadContext == "" {
		threadContext = "(no prior messages)"
	}
	prompt := fmt.Sprintf(classificationPrompt, msg.Subject, msg.Sender, msg.Body, threadContext)

	temperature := float32(0.1)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"classification": {
					Type: genai.TypeString,
					Enum: []string{"not_interested", "maybe_interested", "interested"},
				},
				"confidence":      {Type: genai.TypeNumber},
				"reasoning":       {Type: genai.TypeString},
				"keywords":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"sentiment_score": {Type: genai.TypeNumber},
			},
			Required: []string{"classification", "confidence", "reasoning"},
		},
	})
	if err != nil {
		g.log.Error("gemini classification request failed", "message_id", msg.MessageID, "error", err)
		return domain.ClassificationResult{}, apperr.Wrap(apperr.KindUnavailable, "gemini request failed", err).WithOp("classify.Gemini")
	}

	raw := strings.TrimSpace(resp.Text())
	var parsed geminiResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		g.log.Error("gemini returned unparseable response", "message_id", msg.MessageID, "error", err)
		return domain.ClassificationResult{}, apperr.Wrap(apperr.KindInternal, "parsing gemini response", err).WithOp("classify.Gemini")
	}

	classification := domain.ParseClassification(parsed.Classification)

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return domain.ClassificationResult{
		Classification: classification,
		Confidence:     confidence,
		Reasoning:      parsed.Reasoning,
		Keywords:       parsed.Keywords,
		SentimentScore: parsed.SentimentScore,
	}, nil
}
