package ai

import (
	"context"
	"errors"
	"fmt"
	"image"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

type GeminiReader struct {
	client *genai.Client
	usageTracker
}

// NewGeminiReader creates a reader using the Gemini API. An empty baseURL
// uses the public endpoint.
func NewGeminiReader(ctx context.Context, apiKey string, baseURL ...string) (*GeminiReader, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if len(baseURL) > 0 && baseURL[0] != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL[0]}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiReader{client: client}, nil
}

func (r *GeminiReader) Name() string {
	return geminiModel
}

func (r *GeminiReader) ReadName(ctx context.Context, card image.Image) (string, error) {
	data, err := EncodeJPEG(card, maxImageSize)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: cardNamePrompt},
				{InlineData: &genai.Blob{Data: data, MIMEType: "image/jpeg"}},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := r.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini API error: %w", err)
		}
		if result.UsageMetadata != nil {
			r.track(int64(result.UsageMetadata.PromptTokenCount), int64(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return "", errors.New("no response from Gemini")
		}
		lastResponse = content

		name, err := parseNameResponse(content)
		if err != nil {
			lastError = err
			contents = append(contents,
				&genai.Content{Role: "model", Parts: []*genai.Part{{Text: content}}},
				&genai.Content{Role: "user", Parts: []*genai.Part{{Text: retryMessage(err)}}},
			)
			continue
		}
		return name, nil
	}

	return "", fmt.Errorf("failed to parse name JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
