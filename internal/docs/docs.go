// Package docs carries the bundled YakiHonne API documentation corpus.
//
// The corpus is an opaque string from the assistant's point of view: it is
// handed verbatim to the Q&A generation path and never parsed or indexed here.
package docs

import _ "embed"

//go:embed corpus.md
var corpus string

// APIDocumentation returns the bundled documentation corpus.
func APIDocumentation() string {
	return corpus
}
