package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/metrics"
)

const (
	temperature = 0.7
	maxTokens   = 4096
)

const classifierPrompt = `You classify a single developer query. Decide whether it is a request to build or create something (a widget, a mini app, a tool) or a factual question. Respond with build_request=true only for build/create requests.`

const answerPrompt = `You are an AI assistant that answers questions based on provided documentation.

Answer the question using only the information in the documentation. Cite the specific section of the documentation used to answer the question, if possible.
If the documentation does not contain the answer to the question, respond that the answer is not in the documentation.`

const widgetPrompt = `You are an expert developer specializing in creating YakiHonne Smart Widgets. Your task is to generate the complete, self-contained source code for a widget based on the user's request.

IMPORTANT RULES:
1. The entire widget must be a single HTML file. All CSS must be inside a <style> tag and all JavaScript must be inside a <script> tag in the HTML body.
2. The JavaScript code MUST use the 'smart-widget-handler' library to communicate with the host YakiHonne client. The library is automatically available in the widget's context.
3. The widget should be simple, clean, and functional.
4. For any action that requires user input (like a pubkey or lightning address), use an HTML <input> element.
5. Provide a user-friendly explanation of what the widget does.
6. The default widget kind should be 31337 (Action Widget) unless the request clearly implies a different type.`

const summaryPrompt = `You are an expert documentation summarizer.

Summarize the following API documentation, highlighting the most important points.`

// Client is the gateway to the upstream generation service. Every use case
// goes through the same adapter: serialize the request with a structured
// output schema, invoke the endpoint, validate the returned shape.
//
// The client never retries; retry decisions belong to callers.
type Client struct {
	baseURL         string
	apiKey          string
	model           string
	classifierModel string
	httpClient      *http.Client
	logger          *logger.Logger
}

// NewClient creates a generation gateway client.
func NewClient(baseURL, apiKey, model, classifierModel string, timeout time.Duration, logger *logger.Logger) *Client {
	if classifierModel == "" {
		classifierModel = model
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		model:           model,
		classifierModel: classifierModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.WithComponent("llm"),
	}
}

// Classify decides whether a query is a build/create request. This is a
// dedicated minimal-context call, separate from the substantive generation
// call, so classification failures stay isolated from content failures.
func (c *Client) Classify(ctx context.Context, query string) (bool, error) {
	const op = "classify"

	var payload classificationPayload
	err := c.complete(ctx, op, c.classifierModel, classifierPrompt, "Query: "+query, &payload)
	if err != nil {
		return false, err
	}

	if payload.BuildRequest == nil {
		return false, c.fail(op, KindMalformedOutput, fmt.Errorf("missing build_request field"))
	}

	c.ok(op)
	return *payload.BuildRequest, nil
}

// AnswerFromDocs answers a factual question using the documentation corpus,
// which is passed through verbatim.
func (c *Client) AnswerFromDocs(ctx context.Context, question, documentation string) (*Answer, error) {
	const op = "answer"

	user := fmt.Sprintf("Question: %s\n\nDocumentation:\n%s", question, documentation)

	var payload answerPayload
	if err := c.complete(ctx, op, c.model, answerPrompt, user, &payload); err != nil {
		return nil, err
	}

	if payload.Answer == nil {
		return nil, c.fail(op, KindMalformedOutput, fmt.Errorf("missing answer field"))
	}
	if strings.TrimSpace(*payload.Answer) == "" {
		return nil, c.fail(op, KindEmptyOutput, fmt.Errorf("empty answer"))
	}

	c.ok(op)
	return &Answer{
		Text:     *payload.Answer,
		Citation: payload.Citation,
	}, nil
}

// GenerateWidget synthesizes a self-contained widget from a creative brief.
// The reported kind tag is returned as-is; validating it against the supported
// set is the caller's contract.
func (c *Client) GenerateWidget(ctx context.Context, brief string) (*Widget, error) {
	const op = "widget"

	var payload widgetPayload
	if err := c.complete(ctx, op, c.model, widgetPrompt, "User prompt: "+brief, &payload); err != nil {
		return nil, err
	}

	if payload.HTMLCode == nil || payload.WidgetName == nil || payload.WidgetKind == nil || payload.Explanation == nil {
		return nil, c.fail(op, KindMalformedOutput, fmt.Errorf("missing required widget fields"))
	}
	if strings.TrimSpace(*payload.HTMLCode) == "" || strings.TrimSpace(*payload.WidgetName) == "" {
		return nil, c.fail(op, KindEmptyOutput, fmt.Errorf("empty widget source or name"))
	}

	c.ok(op)
	return &Widget{
		Name:        *payload.WidgetName,
		Source:      *payload.HTMLCode,
		Kind:        *payload.WidgetKind,
		Explanation: *payload.Explanation,
	}, nil
}

// SummarizeDocs produces a short summary of the documentation corpus.
func (c *Client) SummarizeDocs(ctx context.Context, documentation string) (string, error) {
	const op = "summary"

	var payload summaryPayload
	if err := c.complete(ctx, op, c.model, summaryPrompt, documentation, &payload); err != nil {
		return "", err
	}

	if payload.Summary == nil {
		return "", c.fail(op, KindMalformedOutput, fmt.Errorf("missing summary field"))
	}
	if strings.TrimSpace(*payload.Summary) == "" {
		return "", c.fail(op, KindEmptyOutput, fmt.Errorf("empty summary"))
	}

	c.ok(op)
	return *payload.Summary, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// complete makes a single structured-output call and decodes the message
// content into out.
func (c *Client) complete(ctx context.Context, op, model, systemPrompt, userContent string, out interface{}) error {
	format, err := schemaFormat(op+"_result", out)
	if err != nil {
		return c.fail(op, KindMalformedOutput, err)
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		Stream:         false,
		ResponseFormat: format,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return c.fail(op, KindMalformedOutput, fmt.Errorf("marshal request: %w", err))
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return c.fail(op, KindUnavailable, fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.fail(op, KindUnavailable, fmt.Errorf("call generation service at %s: %w", url, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(op, KindUnavailable, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return c.fail(op, KindUnavailable, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, truncate(string(respBody), 512)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return c.fail(op, KindMalformedOutput, fmt.Errorf("decode response: %w", err))
	}

	if len(result.Choices) == 0 {
		return c.fail(op, KindMalformedOutput, fmt.Errorf("no choices in response"))
	}

	choice := result.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		return c.fail(op, KindRefused, fmt.Errorf("service declined: %s", choice.Message.Refusal))
	}

	if err := json.Unmarshal([]byte(choice.Message.Content), out); err != nil {
		return c.fail(op, KindMalformedOutput, fmt.Errorf("decode structured content: %w", err))
	}

	return nil
}

// ok records the success metric for a use case once its output validated.
func (c *Client) ok(op string) {
	metrics.GenerationRequests.WithLabelValues(op, metrics.OutcomeOK).Inc()
}

// fail records the failure metric and builds the typed error.
func (c *Client) fail(op string, kind ErrorKind, err error) *Error {
	metrics.GenerationRequests.WithLabelValues(op, kind.String()).Inc()
	return newError(kind, op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
