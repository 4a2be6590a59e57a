package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/malkrite/yakiwi/internal/llm"
	"github.com/malkrite/yakiwi/internal/logger"
)

// Generator is the subset of the generation gateway the router needs.
type Generator interface {
	Classify(ctx context.Context, query string) (bool, error)
	AnswerFromDocs(ctx context.Context, question, documentation string) (*llm.Answer, error)
	GenerateWidget(ctx context.Context, brief string) (*llm.Widget, error)
}

// Router classifies a query into {question, build request} and dispatches to
// the matching generation path.
type Router struct {
	gen           Generator
	documentation string
	logger        *logger.Logger
}

// NewRouter creates an intent router over the given gateway and documentation
// corpus.
func NewRouter(gen Generator, documentation string, logger *logger.Logger) *Router {
	return &Router{
		gen:           gen,
		documentation: documentation,
		logger:        logger.WithComponent("assistant"),
	}
}

// Route makes exactly one classification decision, then exactly one
// substantive generation call. The classification result is observed before
// the second call is issued; the branches are never executed speculatively.
//
// Failures from either call propagate as *llm.Error. A classification failure
// is surfaced as-is, with no silent fallback to either branch.
func (r *Router) Route(ctx context.Context, query Query) (*Response, error) {
	log := r.logger.WithContext(ctx)

	build, err := r.gen.Classify(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}

	log.Debug("classified query", slog.Bool("build_request", build))

	if build {
		return r.routeWidget(ctx, query)
	}
	return r.routeQuestion(ctx, query)
}

func (r *Router) routeQuestion(ctx context.Context, query Query) (*Response, error) {
	answer, err := r.gen.AnswerFromDocs(ctx, query.Text, r.documentation)
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}

	resp := &Response{
		Answer: answer.Text,
	}
	if answer.Citation != "" {
		citation := answer.Citation
		resp.Citation = &citation
	}

	return resp, nil
}

func (r *Router) routeWidget(ctx context.Context, query Query) (*Response, error) {
	widget, err := r.gen.GenerateWidget(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("generate widget: %w", err)
	}

	if !ValidWidgetKind(widget.Kind) {
		return nil, &llm.Error{
			Kind: llm.KindMalformedOutput,
			Op:   "widget",
			Err:  fmt.Errorf("unsupported widget kind %d", widget.Kind),
		}
	}

	// The artifact source doubles as the code snippet so both paths display
	// uniformly.
	source := widget.Source

	return &Response{
		Answer:      widget.Explanation,
		CodeSnippet: &source,
		Artifact: &WidgetArtifact{
			Name:        widget.Name,
			SourceCode:  widget.Source,
			Kind:        widget.Kind,
			Explanation: widget.Explanation,
		},
	}, nil
}
