// Package perr defines the engine's error taxonomy: Parse, Runtime,
// Operational, and Validation kinds, each carrying a source span where
// applicable. Stack traces and wrapping are built on github.com/pkg/errors
// rather than hand-rolled, matching the rest of the pack's convention for
// any component that needs more than a bare error string.
package perr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/polar-vm/polarvm/pkg/polar/term"
)

// Category is the top-level taxonomy from spec §7.
type Category int

const (
	CategoryParse Category = iota
	CategoryRuntime
	CategoryOperational
	CategoryValidation
)

func (c Category) String() string {
	switch c {
	case CategoryParse:
		return "Parse"
	case CategoryRuntime:
		return "Runtime"
	case CategoryOperational:
		return "Operational"
	case CategoryValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Kind names a specific error within a Category, e.g. "ArithmeticError" or
// "SingletonVariable".
type Kind string

const (
	// Parse
	KindIntegerOverflow       Kind = "IntegerOverflow"
	KindInvalidTokenCharacter Kind = "InvalidTokenCharacter"
	KindInvalidToken          Kind = "InvalidToken"
	KindUnrecognizedEOF       Kind = "UnrecognizedEOF"
	KindUnrecognizedToken     Kind = "UnrecognizedToken"
	KindExtraToken            Kind = "ExtraToken"
	KindReservedWord          Kind = "ReservedWord"
	KindInvalidFloat          Kind = "InvalidFloat"
	KindWrongValueType        Kind = "WrongValueType"
	KindDuplicateKey          Kind = "DuplicateKey"

	// Runtime
	KindArithmeticError             Kind = "ArithmeticError"
	KindUnsupported                 Kind = "Unsupported"
	KindTypeError                   Kind = "TypeError"
	KindStackOverflow               Kind = "StackOverflow"
	KindQueryTimeout                Kind = "QueryTimeout"
	KindApplication                 Kind = "Application"
	KindIncompatibleBindings        Kind = "IncompatibleBindings"
	KindUnhandledPartial            Kind = "UnhandledPartial"
	KindDataFilteringFieldMissing   Kind = "DataFilteringFieldMissing"
	KindDataFilteringUnsupportedOp  Kind = "DataFilteringUnsupportedOp"
	KindInvalidRegistration         Kind = "InvalidRegistration"
	KindMultipleLoadError           Kind = "MultipleLoadError"
	KindQueryForUndefinedRule       Kind = "QueryForUndefinedRule"

	// Operational
	KindInvalidState  Kind = "InvalidState"
	KindSerialization Kind = "Serialization"
	KindUnknown       Kind = "Unknown"

	// Validation
	KindFileLoading                      Kind = "FileLoading"
	KindInvalidRule                      Kind = "InvalidRule"
	KindInvalidRuleType                  Kind = "InvalidRuleType"
	KindMissingRequiredRule              Kind = "MissingRequiredRule"
	KindUndefinedRuleCall                Kind = "UndefinedRuleCall"
	KindResourceBlock                    Kind = "ResourceBlock"
	KindSingletonVariable                Kind = "SingletonVariable"
	KindUnregisteredClass                Kind = "UnregisteredClass"
	KindDuplicateResourceBlockDeclaration Kind = "DuplicateResourceBlockDeclaration"
)

// PolarError is the single error type the engine returns across its public
// API. The Cause chain (via github.com/pkg/errors) preserves a stack trace
// captured at construction.
type PolarError struct {
	Category Category
	Kind     Kind
	Message  string
	Span     term.Span
	HasSpan  bool
	cause    error
}

func (e *PolarError) Error() string {
	return fmt.Sprintf("%s error (%s): %s", e.Category, e.Kind, e.Message)
}

// Unwrap lets errors.Is/As walk to the wrapped stack trace.
func (e *PolarError) Unwrap() error { return e.cause }

func newErr(cat Category, kind Kind, span term.Span, hasSpan bool, msg string) *PolarError {
	e := &PolarError{Category: cat, Kind: kind, Message: msg, Span: span, HasSpan: hasSpan}
	e.cause = errors.WithStack(errors.New(string(kind)))
	return e
}

func newErrf(cat Category, kind Kind, span term.Span, hasSpan bool, format string, args ...interface{}) *PolarError {
	return newErr(cat, kind, span, hasSpan, fmt.Sprintf(format, args...))
}

// StackTrace renders the pkg/errors stack captured when the error was
// built, for the "stack trace construction" the spec's TypeError and
// Application kinds call for.
func (e *PolarError) StackTrace() string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

// ---- Parse constructors ----

func Parse(kind Kind, span term.Span, format string, args ...interface{}) *PolarError {
	return newErrf(CategoryParse, kind, span, true, format, args...)
}

func DuplicateKey(key string, span term.Span) *PolarError {
	return Parse(KindDuplicateKey, span, "duplicate key: %s", key)
}

func ReservedWord(tok string, span term.Span) *PolarError {
	return Parse(KindReservedWord, span, "%s is a reserved Polar word and cannot be used here", tok)
}

func UnrecognizedToken(tok string, span term.Span) *PolarError {
	return Parse(KindUnrecognizedToken, span, "did not expect to find the token '%s'", tok)
}

func UnrecognizedEOF(span term.Span) *PolarError {
	return Parse(KindUnrecognizedEOF, span, "hit the end of the file unexpectedly. Did you forget a semi-colon?")
}

// ---- Runtime constructors ----

func Runtime(kind Kind, format string, args ...interface{}) *PolarError {
	return newErrf(CategoryRuntime, kind, term.Span{}, false, format, args...)
}

func RuntimeAt(kind Kind, span term.Span, format string, args ...interface{}) *PolarError {
	return newErrf(CategoryRuntime, kind, span, true, format, args...)
}

func IncompatibleBindings(msg string) *PolarError {
	return Runtime(KindIncompatibleBindings, "cannot bind: %s", msg)
}

// IsGoalFailure reports whether err represents an ordinary failed goal —
// the only kind of error a resolver's backtracking loop may catch and
// retry past — as opposed to a genuine runtime error that must halt the
// query and propagate to the caller (spec §7: "only IncompatibleBindings/
// grounding failures are caught as backtracks; all other runtime errors
// propagate").
func IsGoalFailure(err error) bool {
	pe, ok := err.(*PolarError)
	if !ok {
		return false
	}
	return pe.Kind == KindIncompatibleBindings
}

func QueryForUndefinedRule(name string) *PolarError {
	return Runtime(KindQueryForUndefinedRule, "call to undefined rule %s", name)
}

func QueryTimeout(elapsedMs int64) *PolarError {
	return Runtime(KindQueryTimeout, "query exceeded its deadline after %dms", elapsedMs)
}

func StackOverflow(limit int) *PolarError {
	return Runtime(KindStackOverflow, "goal or choice stack exceeded MAX_STACK_SIZE (%d)", limit)
}

func ArithmeticErrorAt(span term.Span, msg string) *PolarError {
	return RuntimeAt(KindArithmeticError, span, "%s", msg)
}

func UnsupportedAt(span term.Span, msg string) *PolarError {
	return RuntimeAt(KindUnsupported, span, "%s", msg)
}

func TypeErrorAt(span term.Span, msg, stackTrace string) *PolarError {
	e := RuntimeAt(KindTypeError, span, "%s", msg)
	if stackTrace != "" {
		e.Message = fmt.Sprintf("%s\n%s", e.Message, stackTrace)
	}
	return e
}

func Application(msg string) *PolarError {
	return Runtime(KindApplication, "%s", msg)
}

func UnhandledPartial(varName string) *PolarError {
	return Runtime(KindUnhandledPartial, "unhandled partial: %s is constrained but was expected to be ground", varName)
}

// ---- Operational constructors ----

func InvalidState(msg string) *PolarError {
	return newErrf(CategoryOperational, KindInvalidState, term.Span{}, false, "%s", msg)
}

func Unknown(recovered interface{}) *PolarError {
	return newErrf(CategoryOperational, KindUnknown, term.Span{}, false, "recovered panic: %v", recovered)
}

// ---- Validation constructors ----

func Validation(kind Kind, format string, args ...interface{}) *PolarError {
	return newErrf(CategoryValidation, kind, term.Span{}, false, format, args...)
}

func ValidationAt(kind Kind, span term.Span, format string, args ...interface{}) *PolarError {
	return newErrf(CategoryValidation, kind, span, true, format, args...)
}

func SingletonVariable(name string, span term.Span) *PolarError {
	return ValidationAt(KindSingletonVariable, span, "singleton variable %s is unused", name)
}

func UndefinedRuleCall(name string, span term.Span) *PolarError {
	return ValidationAt(KindUndefinedRuleCall, span, "call to undefined rule %s", name)
}

func UnregisteredClass(name string, span term.Span) *PolarError {
	return ValidationAt(KindUnregisteredClass, span, "unregistered class %s", name)
}

func FileLoading(msg string) *PolarError {
	return Validation(KindFileLoading, "%s", msg)
}
