package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Answer is the result of the factual Q&A path.
type Answer struct {
	Text     string
	Citation string // empty when the model cited nothing
}

// Widget is the result of the widget synthesis path.
type Widget struct {
	Name        string
	Source      string // complete self-contained HTML
	Kind        int    // Nostr kind tag reported by the service; validated by the caller
	Explanation string
}

// Wire shapes for structured output. Required fields are pointers so a field
// the service omitted entirely (a schema violation) is distinguishable from a
// field it returned empty.

type classificationPayload struct {
	BuildRequest *bool `json:"build_request" jsonschema_description:"True when the query asks to build or create something, false for factual questions."`
}

type answerPayload struct {
	Answer   *string `json:"answer" jsonschema_description:"The answer to the question, based on the documentation."`
	Citation string  `json:"citation,omitempty" jsonschema_description:"The relevant documentation cited, if any."`
}

type widgetPayload struct {
	Explanation *string `json:"explanation" jsonschema_description:"A brief, friendly explanation of what the generated widget does and how to use it."`
	WidgetName  *string `json:"widget_name" jsonschema_description:"A short, descriptive name for the widget."`
	HTMLCode    *string `json:"html_code" jsonschema_description:"The complete, self-contained HTML source code for the widget."`
	WidgetKind  *int    `json:"widget_kind" jsonschema_description:"The Nostr kind for the widget, typically 31337 for an Action Widget."`
}

type summaryPayload struct {
	Summary *string `json:"summary" jsonschema_description:"A summary of the API documentation."`
}

// responseFormat is the structured-output request field understood by
// OpenAI-compatible chat completions endpoints.
type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// schemaFormat derives the response_format for a wire payload struct.
func schemaFormat(name string, payload interface{}) (*responseFormat, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}

	schema := reflector.Reflect(payload)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}

	return &responseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchemaFormat{
			Name:   name,
			Strict: true,
			Schema: raw,
		},
	}, nil
}
