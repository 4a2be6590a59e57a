package assistant

// Query is a submitted user query. Immutable once submitted.
type Query struct {
	Text string
}

// Response is the unified shape returned by the router regardless of which
// path handled the query. At most one of Citation and Artifact is non-nil:
// the two execution paths are mutually exclusive outputs merged into one shape.
type Response struct {
	Answer      string
	CodeSnippet *string
	Citation    *string
	Artifact    *WidgetArtifact
}

// WidgetArtifact is a synthesized self-contained widget. It is held only long
// enough to be optionally published; nothing persists it.
type WidgetArtifact struct {
	Name        string
	SourceCode  string
	Kind        int
	Explanation string
}

// Supported widget kind tags.
const (
	KindActionWidget = 31337
	KindToolWidget   = 30033
)

// ValidWidgetKind reports whether the kind tag is one of the supported widget
// kinds. Unsupported tags are a contract violation by the generation service
// and are rejected, never clamped or coerced to a default.
func ValidWidgetKind(kind int) bool {
	switch kind {
	case KindActionWidget, KindToolWidget:
		return true
	default:
		return false
	}
}
