package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// TextGenerator is a single request/response call to a generative model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackCategoryName names the single category used when the model output
// cannot be used.
const FallbackCategoryName = "Uncategorized"

const categorizationPrompt = `Analyze the following sample data and suggest categories for data segmentation.

Sample Data:
%s

Schema (column name to inferred type):
%s

Suggest between 3 and 10 meaningful categories. Consider demographic, behavioral,
value-based, geographic, temporal and lifecycle patterns that the columns support.

Return ONLY a JSON object of this shape:
{
  "categories": [
    {"name": "Category name", "columns": ["column_a", "column_b"], "confidence": 0.0}
  ],
  "reasoning": "Brief explanation of why these categories fit the dataset"
}
"columns" must only contain names from the schema. "confidence" is between 0 and 1.`

// categorizationSchema is the contract a model reply must satisfy.
const categorizationSchema = `{
  "type": "object",
  "required": ["categories"],
  "properties": {
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "columns", "confidence"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "columns": {"type": "array", "items": {"type": "string"}},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "reasoning": {"type": "string"}
  }
}`

// ParseOutcome is the result of interpreting a model reply: either *Parsed or
// *Malformed.
type ParseOutcome interface {
	isParseOutcome()
}

// Parsed carries a reply that satisfied the contract.
type Parsed struct {
	Result models.CategorizationResult
}

// Malformed carries a reply that could not be used, and why.
type Malformed struct {
	Raw    string
	Reason string
}

func (*Parsed) isParseOutcome()    {}
func (*Malformed) isParseOutcome() {}

type categorizationReply struct {
	Categories []struct {
		Name       string   `json:"name"`
		Columns    []string `json:"columns"`
		Confidence float64  `json:"confidence"`
	} `json:"categories"`
	Reasoning string `json:"reasoning"`
}

// Categorizer asks the model for categories and never fails: unusable replies
// degrade to a single Uncategorized category.
type Categorizer struct {
	model   TextGenerator
	maxRows int
	schema  *jsonschema.Schema
}

// NewCategorizer returns a categorizer that embeds at most maxRows sample rows
// in the prompt.
func NewCategorizer(model TextGenerator, maxRows int) (*Categorizer, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("categorization.json", strings.NewReader(categorizationSchema)); err != nil {
		return nil, fmt.Errorf("add categorization schema: %w", err)
	}
	schema, err := compiler.Compile("categorization.json")
	if err != nil {
		return nil, fmt.Errorf("compile categorization schema: %w", err)
	}
	if maxRows <= 0 {
		maxRows = 5
	}
	return &Categorizer{model: model, maxRows: maxRows, schema: schema}, nil
}

// Categorize returns the model's categories for the sample, or the fallback.
func (c *Categorizer) Categorize(ctx context.Context, sample Sample, fileName string) models.CategorizationResult {
	logCtx := slog.With("sourceFileName", fileName)

	prompt, err := c.prompt(sample)
	if err != nil {
		logCtx.Warn("Failed to build categorization prompt, using fallback.", "error", err)
		return Fallback(sample.Schema, fileName)
	}

	raw, err := c.model.Generate(ctx, prompt)
	if err != nil {
		err = &ModelServiceError{Op: "categorize", Err: err}
		logCtx.Warn("Model call failed, using fallback categorization.", "error", err)
		return Fallback(sample.Schema, fileName)
	}

	switch out := c.Parse(raw, sample.Schema).(type) {
	case *Parsed:
		out.Result.SourceFileName = fileName
		logCtx.Info("Categorization parsed.", "categories", len(out.Result.Categories))
		return out.Result
	case *Malformed:
		logCtx.Warn("Malformed categorization reply, using fallback.", "reason", out.Reason, "rawLength", len(out.Raw))
		return Fallback(sample.Schema, fileName)
	default:
		return Fallback(sample.Schema, fileName)
	}
}

// Parse interprets raw model output against the categorization contract.
// Matched columns are deduplicated and restricted to schema columns when a
// schema is known.
func (c *Categorizer) Parse(raw string, schema models.Schema) ParseOutcome {
	body, ok := extractJSONObject(raw)
	if !ok {
		return &Malformed{Raw: raw, Reason: "no JSON object in reply"}
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return &Malformed{Raw: raw, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := c.schema.Validate(doc); err != nil {
		return &Malformed{Raw: raw, Reason: fmt.Sprintf("reply does not match contract: %v", err)}
	}

	var reply categorizationReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return &Malformed{Raw: raw, Reason: fmt.Sprintf("decode reply: %v", err)}
	}

	known := make(map[string]bool, len(schema))
	for _, col := range schema {
		known[col.Name] = true
	}

	result := models.CategorizationResult{Reasoning: reply.Reasoning}
	for _, cat := range reply.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			continue
		}
		seen := make(map[string]bool, len(cat.Columns))
		matched := make([]string, 0, len(cat.Columns))
		for _, col := range cat.Columns {
			if seen[col] || (len(known) > 0 && !known[col]) {
				continue
			}
			seen[col] = true
			matched = append(matched, col)
		}
		result.Categories = append(result.Categories, models.Category{
			Name:           name,
			MatchedColumns: matched,
			Confidence:     cat.Confidence,
		})
	}
	if len(result.Categories) == 0 {
		return &Malformed{Raw: raw, Reason: "no category has a non-blank name"}
	}
	return &Parsed{Result: result}
}

// Fallback is the categorization used whenever the model reply is unusable.
func Fallback(schema models.Schema, fileName string) models.CategorizationResult {
	return models.CategorizationResult{
		Categories: []models.Category{{
			Name:           FallbackCategoryName,
			MatchedColumns: schema.Names(),
			Confidence:     0.0,
		}},
		SourceFileName: fileName,
		Fallback:       true,
	}
}

func (c *Categorizer) prompt(sample Sample) (string, error) {
	rows := sample.Rows
	if len(rows) > c.maxRows {
		rows = rows[:c.maxRows]
	}
	rowsJSON, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sample rows: %w", err)
	}
	schemaJSON, err := json.MarshalIndent(sample.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return fmt.Sprintf(categorizationPrompt, rowsJSON, schemaJSON), nil
}

// extractJSONObject strips code fences and returns the outermost {...} span.
func extractJSONObject(raw string) (string, bool) {
	s := stripFences(raw, "json")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// stripFences removes a surrounding Markdown code fence, optionally tagged
// with lang.
func stripFences(raw, lang string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```"+lang)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// renderJSON is a compact, deterministic JSON rendering used in prompts and
// job arguments.
func renderJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
