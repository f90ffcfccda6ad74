package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"auditor/internal/document"
	"auditor/internal/judge"
)

// Default Gemini models.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultVisionModel = "gemini-2.5-flash"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("oracle: empty model response")

// GenAI scores through the Gemini API.
type GenAI struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAI creates a Gemini-backed oracle.
func NewGenAI(ctx context.Context, apiKey, model string, temperature float32) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai oracle: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAI{client: client, model: model, temperature: temperature}, nil
}

// Name returns the backend identifier.
func (g *GenAI) Name() string { return "genai" }

// Score implements judge.Oracle. Parsing failures surface as
// judge.ErrInvalidOpinion so the bench retries.
func (g *GenAI) Score(ctx context.Context, req judge.Request) (judge.Verdict, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return judge.Verdict{}, fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return judge.Verdict{}, ErrEmptyResponse
	}
	return judge.ParseVerdict(text)
}

// GenAIVision describes images through a multimodal Gemini model.
type GenAIVision struct {
	client *genai.Client
	model  string
}

// NewGenAIVision creates a Gemini-backed describer.
func NewGenAIVision(ctx context.Context, apiKey, model string) (*GenAIVision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai vision: API key is required")
	}
	if model == "" {
		model = DefaultVisionModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIVision{client: client, model: model}, nil
}

// Describe implements document.Describer.
func (v *GenAIVision) Describe(ctx context.Context, img document.Image, question string) (string, error) {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(question),
		}, genai.RoleUser),
	}
	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Stub is the describer used when no vision model is configured. Every call
// fails with document.ErrNoVision, so image dimensions record missing
// evidence.
type Stub struct{}

func (Stub) Describe(_ context.Context, img document.Image, _ string) (string, error) {
	return "", fmt.Errorf("%w: image %s on page %d not analyzed", document.ErrNoVision, img.Name, img.Page)
}
