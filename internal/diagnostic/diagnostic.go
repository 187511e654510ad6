// Package diagnostic defines the closed set of error codes and the
// success/value/errors/warnings result shape every parser in iacgraph returns.
package diagnostic

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Code is a closed set of diagnostic codes shared across the HCL, GHA, and
// Helmfile parsers. Field names and values must stay bit-stable: callers
// match on Code, not on Message.
type Code string

// Closed set of diagnostic codes. A parser must never emit a code outside
// this list.
const (
	CodeInvalidYAML         Code = "INVALID_YAML"
	CodeInvalidWorkflow     Code = "INVALID_WORKFLOW"
	CodeInvalidJob          Code = "INVALID_JOB"
	CodeInvalidStep         Code = "INVALID_STEP"
	CodeInvalidTrigger      Code = "INVALID_TRIGGER"
	CodeUnknownDependency   Code = "UNKNOWN_DEPENDENCY"
	CodeCircularDependency  Code = "CIRCULAR_DEPENDENCY"
	CodeMissingReleaseName  Code = "MISSING_RELEASE_NAME"
	CodeMissingReleaseChart Code = "MISSING_RELEASE_CHART"
	CodeInvalidExpression   Code = "INVALID_EXPRESSION"
	CodeLexerError          Code = "LEXER_ERROR"
	CodeParseError          Code = "PARSE_ERROR"
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeParseTimeout        Code = "PARSE_TIMEOUT"
)

// Severity classifies how a Diagnostic affects the owning Result.
type Severity string

const (
	// SeverityWarning is kept in the result; Success is unaffected.
	SeverityWarning Severity = "warning"
	// SeverityError is kept in the result; Success becomes false.
	SeverityError Severity = "error"
	// SeverityFatal aborts the parse; the partial value is discarded.
	SeverityFatal Severity = "fatal"
)

// Location mirrors the source-location shape used throughout the AST (§3.1).
type Location struct {
	File        string
	LineStart   int
	LineEnd     int
	ColumnStart int
	ColumnEnd   int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.LineStart == l.LineEnd {
		return fmt.Sprintf("%s:%d:%d", l.File, l.LineStart, l.ColumnStart)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.File, l.LineStart, l.ColumnStart, l.LineEnd, l.ColumnEnd)
}

// Diagnostic is a single error or warning produced by a parser.
type Diagnostic struct {
	Code        Code
	Message     string
	Location    *Location
	Severity    Severity
	Recoverable bool
}

func (d Diagnostic) Error() string {
	if d.Location != nil {
		return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, d.Location)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Result is the shape returned by every parser entry point: ParseModule,
// ParseWorkflow, Parse (Helmfile). Success is false whenever Errors is
// non-empty; Value may still be a usable partial result when errorRecovery
// was enabled.
type Result[T any] struct {
	Success  bool
	Value    T
	Errors   []Diagnostic
	Warnings []Diagnostic
}

// NewResult builds a Result, deriving Success from the absence of
// error/fatal-severity diagnostics in errs.
func NewResult[T any](value T, errs, warnings []Diagnostic) Result[T] {
	return Result[T]{
		Success:  len(errs) == 0,
		Value:    value,
		Errors:   errs,
		Warnings: warnings,
	}
}

// Err folds Errors into a single Go error via hashicorp/go-multierror, or
// returns nil when there are none. Callers that only want a boolean/error
// signal (e.g. a CI linter) can use this instead of walking Errors by hand.
func (r Result[T]) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, d := range r.Errors {
		merr = multierror.Append(merr, d)
	}
	return merr.ErrorOrNil()
}

// Collector accumulates diagnostics during a single parse pass, preserving
// the order they were raised in (ordering guarantee, §5).
type Collector struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
	fatal    *Diagnostic
}

// Add records a diagnostic, routing it to Errors or Warnings by severity.
// A fatal diagnostic is remembered so IsFatal/Fatal can short-circuit the
// caller's parse loop.
func (c *Collector) Add(d Diagnostic) {
	switch d.Severity {
	case SeverityWarning:
		c.Warnings = append(c.Warnings, d)
	default:
		c.Errors = append(c.Errors, d)
		if d.Severity == SeverityFatal && c.fatal == nil {
			fatal := d
			c.fatal = &fatal
		}
	}
}

// IsFatal reports whether a fatal diagnostic has been recorded.
func (c *Collector) IsFatal() bool {
	return c.fatal != nil
}

// Fatal returns the first fatal diagnostic recorded, or nil.
func (c *Collector) Fatal() *Diagnostic {
	return c.fatal
}
