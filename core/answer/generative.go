package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/siherrmann/vidrag/helper"
	"google.golang.org/api/option"
)

// generativePrompt is the fixed template handed to the model. Everything
// around it (truncation, source selection) happens in the composer.
const generativePrompt = `Based on the following context from a video transcript, please answer the question.

Context:
%v

Question: %v

Please provide a clear and concise answer based only on the information provided in the context. If the context doesn't contain enough information to answer the question, please say so.

Answer:`

// generativeConfidence is nominal. The model reports no probability, so a
// fixed value documents "generated, not measured".
const generativeConfidence = 0.8

// Generative answers free-form via the Gemini API.
type Generative struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGenerative creates a Gemini-backed answer backend.
func NewGenerative(ctx context.Context, apiKey string, modelName string) (*Generative, error) {
	if apiKey == "" {
		return nil, helper.NewError("create generative backend", fmt.Errorf("api key is empty"))
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, helper.NewError("create genai client", err)
	}

	return &Generative{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Answer generates an answer from the passage. The confidence is the
// nominal generative constant, not a model probability.
func (g *Generative) Answer(ctx context.Context, question string, passage string) (string, float64, error) {
	prompt := fmt.Sprintf(generativePrompt, passage, question)

	response, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, helper.NewError("generate answer", err)
	}

	text := collectText(response)
	if strings.TrimSpace(text) == "" {
		return "", 0, helper.NewError("generate answer", fmt.Errorf("empty model response"))
	}

	return strings.TrimSpace(text), generativeConfidence, nil
}

// Close releases the underlying API client.
func (g *Generative) Close() error {
	return g.client.Close()
}

func collectText(response *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return builder.String()
}
