package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

const scriptPrompt = `Create a complete PySpark segmentation script for the batch job runner.

Dataset Information:
- Schema: %s
- Sample Data: %s
- Categories: %s
- Segmentation Criteria: %s

The script receives --objectRef (the input CSV) and --outputRef (a prefix) as
arguments. It must:
1. Read the CSV input with a header row.
2. Apply the segmentation criteria for each category.
3. Handle missing values and mixed data types.
4. Write each segment to <outputRef>/segments/<category>/ and its first rows
   as a single CSV file to <outputRef>/previews/<category>.csv.
5. Write <outputRef>/summary.json with jobRunId, jobName, columns, segments
   (category to record count) and totalRecords.

Return only the Python code without any markdown formatting or explanations.`

// refusalPhrases mark a model reply that declined the task.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

func isRefusal(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// fallbackScript only depends on the criteria, so it is valid for any input.
var fallbackScript = template.Must(template.New("segmentation").Parse(`import argparse
import csv
import io
import json
import logging

from pyspark.sql import SparkSession
from pyspark.sql.functions import col

logging.basicConfig(level=logging.INFO)
logger = logging.getLogger("segmentation")

CRITERIA = json.loads({{.CriteriaLiteral}})
PREVIEW_ROWS = 100

OPERATORS = {
    "equals": lambda c, v: col(c) == v,
    "greater_than": lambda c, v: col(c) > v,
    "less_than": lambda c, v: col(c) < v,
    "contains": lambda c, v: col(c).contains(v),
    "in": lambda c, v: col(c).isin(v),
    "not_null": lambda c, v: col(c).isNotNull(),
    "is_null": lambda c, v: col(c).isNull(),
}


def write_text(spark, path, text):
    jvm = spark.sparkContext._jvm
    target = jvm.org.apache.hadoop.fs.Path(path)
    fs = target.getFileSystem(spark.sparkContext._jsc.hadoopConfiguration())
    out = fs.create(target, True)
    out.write(bytearray(text.encode("utf-8")))
    out.close()


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--objectRef", required=True)
    parser.add_argument("--outputRef", required=True)
    parser.add_argument("--jobRunId", default="")
    parser.add_argument("--jobName", default="")
    args, _ = parser.parse_known_args()

    spark = SparkSession.builder.appName("segmentation").getOrCreate()
    df = spark.read.csv(args.objectRef, header=True, inferSchema=True)
    total = df.count()
    logger.info("Read %d records from %s", total, args.objectRef)

    counts = {}
    for name, spec in CRITERIA.items():
        segment = df
        filters = spec.get("filters", []) if isinstance(spec, dict) else []
        for f in filters:
            if len(f) < 2 or f[0] not in df.columns or f[1] not in OPERATORS:
                logger.warning("Skipping filter %s for segment %s", f, name)
                continue
            segment = segment.filter(OPERATORS[f[1]](f[0], f[2] if len(f) > 2 else None))
        segment.write.mode("overwrite").csv("%s/segments/%s" % (args.outputRef, name), header=True)
        counts[name] = segment.count()

        buf = io.StringIO()
        writer = csv.writer(buf)
        writer.writerow(df.columns)
        for row in segment.limit(PREVIEW_ROWS).collect():
            writer.writerow(["" if v is None else v for v in row])
        write_text(spark, "%s/previews/%s.csv" % (args.outputRef, name), buf.getvalue())
        logger.info("Segment %s has %d records", name, counts[name])

    summary = {
        "jobRunId": args.jobRunId,
        "jobName": args.jobName,
        "columns": df.columns,
        "segments": counts,
        "totalRecords": total,
    }
    write_text(spark, "%s/summary.json" % args.outputRef, json.dumps(summary))


if __name__ == "__main__":
    main()
`))

// ScriptGenerator produces the transformation script for a segmentation job.
type ScriptGenerator struct {
	model   TextGenerator
	maxRows int
}

// NewScriptGenerator returns a generator embedding at most maxRows rows.
func NewScriptGenerator(model TextGenerator, maxRows int) *ScriptGenerator {
	if maxRows <= 0 {
		maxRows = 5
	}
	return &ScriptGenerator{model: model, maxRows: maxRows}
}

// Generate asks the model for a script and falls back to the built-in
// template when the call fails or the reply is empty or a refusal. The
// returned script has no StorageRef; the caller stages it.
func (g *ScriptGenerator) Generate(ctx context.Context, schema models.Schema, categories []models.Category, criteria map[string]any, sample Sample) models.GeneratedScript {
	content, err := g.fromModel(ctx, schema, categories, criteria, sample)
	if err == nil {
		return models.GeneratedScript{Content: content}
	}
	slog.Warn("Using template script.", "error", err)

	content, err = RenderFallbackScript(criteria)
	if err != nil {
		slog.Error("Failed to render template script.", "error", err)
	}
	return models.GeneratedScript{Content: content, Fallback: true}
}

func (g *ScriptGenerator) fromModel(ctx context.Context, schema models.Schema, categories []models.Category, criteria map[string]any, sample Sample) (string, error) {
	prompt, err := g.prompt(schema, categories, criteria, sample)
	if err != nil {
		return "", err
	}
	raw, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return "", &ModelServiceError{Op: "generate script", Err: err}
	}
	content := stripFences(raw, "python")
	if content == "" {
		return "", fmt.Errorf("model returned an empty script")
	}
	if isRefusal(content) {
		return "", fmt.Errorf("model reply indicates refusal (%d bytes)", len(content))
	}
	return content, nil
}

// RenderFallbackScript renders the built-in template for criteria.
func RenderFallbackScript(criteria map[string]any) (string, error) {
	if criteria == nil {
		criteria = map[string]any{}
	}
	criteriaJSON, err := renderJSON(criteria)
	if err != nil {
		return "", fmt.Errorf("marshal criteria: %w", err)
	}
	// A JSON string literal is also a valid Python string literal.
	literal, err := renderJSON(criteriaJSON)
	if err != nil {
		return "", fmt.Errorf("quote criteria: %w", err)
	}

	var buf bytes.Buffer
	if err := fallbackScript.Execute(&buf, struct{ CriteriaLiteral string }{literal}); err != nil {
		return "", fmt.Errorf("render template script: %w", err)
	}
	return buf.String(), nil
}

func (g *ScriptGenerator) prompt(schema models.Schema, categories []models.Category, criteria map[string]any, sample Sample) (string, error) {
	rows := sample.Rows
	if len(rows) > g.maxRows {
		rows = rows[:g.maxRows]
	}
	parts := make([]string, 0, 4)
	for _, v := range []any{schema, rows, categories, criteria} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal prompt input: %w", err)
		}
		parts = append(parts, string(b))
	}
	return fmt.Sprintf(scriptPrompt, parts[0], parts[1], parts[2], parts[3]), nil
}
