package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const plateTextPrompt = `Read the vehicle license plate in this image.
Return only the characters printed on the plate, one reading per line, most likely first.
If no characters are readable return an empty response.`

type IVision interface {
	Recognize(ctx context.Context, plate image.Image) ([]string, error)
}

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a compatible self hosted server.
	BaseURL string
}

type visionService struct {
	client *openai.Client
	model  string
}

func NewVision(cfg Config) (IVision, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &visionService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (v *visionService) Recognize(ctx context.Context, plate image.Image) ([]string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, plate); err != nil {
		return nil, fmt.Errorf("encode plate: %w", err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	resp, err := v.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: v.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: plateTextPrompt},
						{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						}},
					},
				},
			},
			MaxTokens: 50,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, nil
	}

	return splitLines(resp.Choices[0].Message.Content), nil
}

func splitLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "`\""))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
