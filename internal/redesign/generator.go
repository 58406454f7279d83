// Package redesign produces AI room-redesign renders. The HTTP layer depends
// only on the Generator interface; the OpenAI-backed implementation is wired
// at startup.
package redesign

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Request describes one redesign job.
type Request struct {
	ImageURL string
	RoomType string
	Style    string
}

// Generator renders a redesigned room and returns the output image URL.
type Generator interface {
	Redesign(ctx context.Context, request Request) (string, error)
}

// OpenAIGenerator renders rooms through the OpenAI image API.
type OpenAIGenerator struct {
	client *openai.Client
}

// NewOpenAIGenerator wires a generator from an API key.
func NewOpenAIGenerator(apiKey string) *OpenAIGenerator {
	return &OpenAIGenerator{client: openai.NewClient(apiKey)}
}

// Redesign submits an image-generation request built from the room description.
func (generator *OpenAIGenerator) Redesign(ctx context.Context, request Request) (string, error) {
	prompt, err := buildPrompt(request)
	if err != nil {
		return "", err
	}
	response, err := generator.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(response.Data) == 0 {
		return "", fmt.Errorf("create image: empty response")
	}
	return response.Data[0].URL, nil
}

func buildPrompt(request Request) (string, error) {
	roomType := strings.TrimSpace(request.RoomType)
	style := strings.TrimSpace(request.Style)
	if roomType == "" || style == "" {
		return "", fmt.Errorf("room type and style are required")
	}
	prompt := fmt.Sprintf("A photorealistic interior redesign of a %s in %s style, keeping the room layout of the reference photo", roomType, style)
	if reference := strings.TrimSpace(request.ImageURL); reference != "" {
		prompt = fmt.Sprintf("%s (%s)", prompt, reference)
	}
	return prompt, nil
}
