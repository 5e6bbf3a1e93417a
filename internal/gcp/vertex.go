package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Categorization Model Prompts ---
const CategorizationSystemPrompt = "You are a data analyst expert. You analyze tabular sample data and suggest practical, actionable categories for data segmentation. You must output your response as a single valid JSON object."

// --- Script Model Prompts ---
const ScriptSystemPrompt = "You are a data engineering expert who writes production-ready PySpark batch jobs. You return only Python source code, with no markdown formatting or explanations."

// VertexClient holds the pre-configured generative models for our app.
type VertexClient struct {
	CategorizationModel *genai.GenerativeModel
	ScriptModel         *genai.GenerativeModel
	baseClient          *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the categorization model ---
	categorizationModel := baseClient.GenerativeModel(modelName)
	categorizationModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(CategorizationSystemPrompt)},
	}
	categorizationModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
		TopP:             genai.Ptr[float32](0.9),
		MaxOutputTokens:  genai.Ptr[int32](1024),
	}

	// --- Configure the script model ---
	scriptModel := baseClient.GenerativeModel(modelName)
	scriptModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ScriptSystemPrompt)},
	}
	scriptModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.1),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](8192),
	}

	return &VertexClient{
		CategorizationModel: categorizationModel,
		ScriptModel:         scriptModel,
		baseClient:          baseClient,
	}, nil
}

// Categorization returns the categorization model as a text generator.
func (c *VertexClient) Categorization() *ModelGenerator {
	return &ModelGenerator{model: c.CategorizationModel}
}

// Scripting returns the script model as a text generator.
func (c *VertexClient) Scripting() *ModelGenerator {
	return &ModelGenerator{model: c.ScriptModel}
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// ModelGenerator issues one GenerateContent call per prompt.
type ModelGenerator struct {
	model *genai.GenerativeModel
}

func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp)
}

var errNoCandidates = errors.New("gemini response has no text candidates")

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errNoCandidates
	}

	var text strings.Builder
	var textPartsFound int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
			textPartsFound++
		}
	}
	if textPartsFound == 0 {
		return "", errNoCandidates
	}
	if textPartsFound > 1 {
		slog.Warn("Gemini response contained multiple text parts; they have been concatenated.", "parts", textPartsFound)
	}
	return strings.TrimSpace(text.String()), nil
}
