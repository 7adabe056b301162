package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const chatModel = openai.ChatModelGPT4_1Mini

type OpenAIReader struct {
	client *openai.Client
	usageTracker
}

// NewOpenAIReader creates a reader using the chat completions API. Extra
// request options are applied after the API key.
func NewOpenAIReader(apiKey string, opts ...option.RequestOption) *OpenAIReader {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIReader{client: &client}
}

func (r *OpenAIReader) Name() string {
	return chatModel
}

func (r *OpenAIReader) ReadName(ctx context.Context, card image.Image) (string, error) {
	data, err := EncodeJPEG(card, maxImageSize)
	if err != nil {
		return "", err
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(cardNamePrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Read the student name on this card."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "high",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    chatModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(100),
		})
		if err != nil {
			return "", fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no response from OpenAI")
		}
		r.track(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		content := resp.Choices[0].Message.Content
		lastResponse = content

		name, err := parseNameResponse(content)
		if err != nil {
			lastError = err
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(retryMessage(err)),
						},
					},
				},
			)
			continue
		}
		return name, nil
	}

	return "", fmt.Errorf("failed to parse name JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
