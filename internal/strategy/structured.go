package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/giantswarm/survey-eval/internal/llm"
)

const assessmentSchema = `{
  "type": "object",
  "required": ["key_findings", "differential", "most_likely_diagnosis"],
  "properties": {
    "key_findings": {"type": "array", "items": {"type": "string"}},
    "differential": {"type": "array", "items": {"type": "string"}},
    "most_likely_diagnosis": {"type": "string", "minLength": 1},
    "red_flags": {"type": "array", "items": {"type": "string"}},
    "next_steps": {"type": "array", "items": {"type": "string"}}
  }
}`

// Assessment is the JSON document the structured strategy asks for.
type Assessment struct {
	KeyFindings         []string `json:"key_findings"`
	Differential        []string `json:"differential"`
	MostLikelyDiagnosis string   `json:"most_likely_diagnosis"`
	RedFlags            []string `json:"red_flags,omitempty"`
	NextSteps           []string `json:"next_steps,omitempty"`
}

// StructuredStrategy asks the model for a schema-constrained diagnostic
// assessment and renders it as plain text for grading. Replies that do not
// validate are kept verbatim.
type StructuredStrategy struct {
	schema *gojsonschema.Schema
}

// NewStructuredStrategy compiles the assessment schema.
func NewStructuredStrategy() *StructuredStrategy {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(assessmentSchema))
	if err != nil {
		// The schema is a constant; a compile failure is a programming error.
		panic(fmt.Sprintf("invalid assessment schema: %v", err))
	}
	return &StructuredStrategy{schema: schema}
}

func (s *StructuredStrategy) Name() string {
	return "structured"
}

func (s *StructuredStrategy) Respond(ctx context.Context, client llm.Client, model string, item Item) (*Response, error) {
	start := time.Now()

	raw, err := ask(ctx, client, model, StructuredPrompt, item.LaypersonQuestion)
	if err != nil {
		return nil, fmt.Errorf("structured: failed to get assessment: %w", err)
	}

	text := raw
	assessment, err := s.Parse(raw)
	if err != nil {
		slog.Warn("structured reply did not validate, keeping raw text",
			"index", item.Pair.Index,
			"error", err,
		)
	} else {
		text = assessment.Render()
	}

	return &Response{
		Strategy: s.Name(),
		Prompt:   item.LaypersonQuestion,
		Answer:   text,
		Duration: time.Since(start),
	}, nil
}

// Parse extracts the outermost JSON object from a reply, validates it
// against the assessment schema and decodes it.
func (s *StructuredStrategy) Parse(reply string) (*Assessment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	doc := []byte(reply[start : end+1])

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	var a Assessment
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	return &a, nil
}

// Render formats the assessment as the plain text handed to the judge.
func (a *Assessment) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Most likely diagnosis: %s\n", a.MostLikelyDiagnosis)
	writeList(&sb, "Differential", a.Differential)
	writeList(&sb, "Key findings", a.KeyFindings)
	writeList(&sb, "Red flags", a.RedFlags)
	writeList(&sb, "Next steps", a.NextSteps)
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(items, "; "))
}
