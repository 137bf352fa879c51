package perr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SourceMap resolves a source id to its original text, the way the
// knowledge base's append-only source map does.
type SourceMap interface {
	Source(id int) (text string, ok bool)
}

// Format renders err the way the spec's formatter does: "NNN: <line>" with
// a caret line under the offending span, when a SourceMap is available and
// the error carries a span.
func Format(err *PolarError, sources SourceMap) string {
	var b strings.Builder
	b.WriteString(err.Error())
	if !err.HasSpan || sources == nil {
		return b.String()
	}
	text, ok := sources.Source(err.Span.SourceID)
	if !ok {
		return b.String()
	}
	line, col, excerpt := excerptLine(text, err.Span.Left)
	fmt.Fprintf(&b, "\n%03d: %s\n     %s^", line, excerpt, strings.Repeat(" ", col))
	return b.String()
}

// excerptLine returns the 1-indexed line number, 0-indexed column, and the
// text of the line containing byte offset `at`.
func excerptLine(text string, at int) (line, col int, excerpt string) {
	if at < 0 {
		at = 0
	}
	if at > len(text) {
		at = len(text)
	}
	line = 1
	lineStart := 0
	for i := 0; i < at && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := strings.IndexByte(text[lineStart:], '\n')
	if lineEnd == -1 {
		excerpt = text[lineStart:]
	} else {
		excerpt = text[lineStart : lineStart+lineEnd]
	}
	col = at - lineStart
	return
}

// Aggregator accumulates zero or more Validation errors while a policy file
// loads, instead of stopping at the first, using go-multierror the way
// nomad's job-submission validation does.
type Aggregator struct {
	errs *multierror.Error
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Add(err error) {
	if err == nil {
		return
	}
	a.errs = multierror.Append(a.errs, err)
}

// Err returns nil if nothing was added, or the aggregated error otherwise.
func (a *Aggregator) Err() error {
	return a.errs.ErrorOrNil()
}

// Len reports how many errors have been accumulated.
func (a *Aggregator) Len() int {
	if a.errs == nil {
		return 0
	}
	return len(a.errs.Errors)
}
