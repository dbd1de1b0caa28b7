package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const plateTextPrompt = `Read the vehicle license plate in this image.
Reply with the plate characters only, one candidate per line, most likely first.
Reply with an empty message if no plate text is readable.`

type IGemini interface {
	Recognize(ctx context.Context, plate image.Image) ([]string, error)
	Close()
}

type geminiClient struct {
	modelName string
	client    *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string, modelName string) (IGemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) Recognize(ctx context.Context, plate image.Image) ([]string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, plate, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode plate crop: %w", err)
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)

	res, err := model.GenerateContent(ctx, genai.Text(plateTextPrompt), genai.ImageData("jpeg", buf.Bytes()))
	if err != nil {
		return nil, err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, errors.New("unexpected response format from Gemini API")
	}

	return parseCandidates(string(text)), nil
}

func parseCandidates(response string) []string {
	var candidates []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "`"))
		if line == "" {
			continue
		}
		candidates = append(candidates, line)
	}
	return candidates
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
