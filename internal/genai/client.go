// Package genai wraps the generative-language API behind the two operations
// the update router needs: text generation and generation over a binary
// attachment. The upstream is any OpenAI-compatible chat completions
// endpoint; the base URL and models are configuration.
//
// Contract: a call that fails, or that succeeds without extractable text,
// is reported as services.ErrGeneration. Callers treat that as recoverable
// and substitute a fallback string; nothing here retries.
package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
)

// Client calls the generation API. Safe for concurrent use.
type Client struct {
	api         openai.Client
	textModel   string
	visionModel string
	log         zerolog.Logger
}

// NewClient constructs a generation client. baseURL may be empty to use the
// upstream default; textModel and visionModel select the models used for
// plain prompts and attachment prompts respectively.
func NewClient(apiKey, baseURL, textModel, visionModel string, log zerolog.Logger) *Client {
	// Attempt-once: the router substitutes a fallback on failure, so the
	// SDK's default retry policy is switched off.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:         openai.NewClient(opts...),
		textModel:   textModel,
		visionModel: visionModel,
		log:         log.With().Str("component", "genai").Logger(),
	}
}

// Generate produces text for a plain text prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, c.textModel, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})
}

// GenerateWithAttachment produces text for a prompt plus an opaque binary
// attachment with a declared MIME type. The attachment is passed inline as a
// base64 data URL.
func (c *Client) GenerateWithAttachment(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	return c.complete(ctx, c.visionModel, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(parts),
	})
}

// complete issues one chat completion call and extracts the reply text.
func (c *Client) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		c.log.Error().Err(err).Str("model", model).Msg("generation call failed")
		return "", fmt.Errorf("%w: %v", services.ErrGeneration, err)
	}

	// Absence of text is a first-class failure, not a field probe.
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.log.Warn().Str("model", model).Msg("generation response carried no text")
		return "", fmt.Errorf("%w: response carried no text", services.ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
