package ast

import "fmt"

// ErrorKind enumerates the closed set of ways a document can fail to lower
// or validate. It is a closed set, not a type hierarchy: every lowering and
// validation failure in this module is reported as an Error tagged with
// one of these kinds.
type ErrorKind int

const (
	// ErrGrammar means a backend produced a concrete-tree shape the
	// lowering code did not expect. This indicates a bug in the backend's
	// grammar, not malformed user input.
	ErrGrammar ErrorKind = iota
	// ErrInteger means a numeric lexeme could not be parsed as an Integer.
	ErrInteger
	// ErrFloat means a numeric lexeme could not be parsed as a Float.
	ErrFloat
	// ErrVersion means the document's version lexeme is not 1.0 or 1.1.
	ErrVersion
	// ErrTaskRepeatedElement means a Task body contains more than one of a
	// task element kind that must be unique.
	ErrTaskRepeatedElement
	// ErrTaskMissingCommand means a Task body has no Command element.
	ErrTaskMissingCommand
	// ErrWorkflowRepeatedElement means a Workflow body contains more than
	// one of a workflow element kind that must be unique.
	ErrWorkflowRepeatedElement
	// ErrDocumentIncomplete means a Document has no Struct, Task, or
	// Workflow element.
	ErrDocumentIncomplete
	// ErrDocumentMultipleWorkflows means a Document has more than one
	// Workflow element.
	ErrDocumentMultipleWorkflows
	// ErrCommentRepeatedLine means two comments were discovered on the same
	// source line; in a language with no block comments this should never
	// happen and indicates a backend bug.
	ErrCommentRepeatedLine
)

func (k ErrorKind) String() string {
	switch k {
	case ErrGrammar:
		return "Grammar"
	case ErrInteger:
		return "Integer"
	case ErrFloat:
		return "Float"
	case ErrVersion:
		return "Version"
	case ErrTaskRepeatedElement:
		return "TaskRepeatedElement"
	case ErrTaskMissingCommand:
		return "TaskMissingCommand"
	case ErrWorkflowRepeatedElement:
		return "WorkflowRepeatedElement"
	case ErrDocumentIncomplete:
		return "DocumentIncomplete"
	case ErrDocumentMultipleWorkflows:
		return "DocumentMultipleWorkflows"
	case ErrCommentRepeatedLine:
		return "CommentRepeatedLine"
	default:
		return "Unknown"
	}
}

// Error is the model-layer error type: every lowering or validation failure
// carries a Kind, a human-readable Message, the offending Span when one is
// known, and a short source fragment when available.
type Error struct {
	Kind     ErrorKind
	Message  string
	Span     *Span
	Fragment string
}

func (e Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, *e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithSpan returns a copy of e with the span and source fragment attached.
func (e Error) WithSpan(span Span, fragment string) Error {
	e.Span = &span
	e.Fragment = fragment
	return e
}

// Grammar builds an ErrGrammar error describing an unexpected concrete-tree
// shape. kind names the expectation that was violated (e.g. "field",
// "terminal", "rule"); value is the offending node's textual description.
func Grammar(kind, value string) Error {
	return Error{
		Kind:    ErrGrammar,
		Message: fmt.Sprintf("the parser allowed invalid syntax: %s %s; this indicates a bug in the backend grammar", kind, value),
	}
}

// Grammarf is Grammar with a pre-formatted message, for call sites where a
// kind/value split reads awkwardly.
func Grammarf(format string, args ...any) Error {
	return Error{Kind: ErrGrammar, Message: fmt.Sprintf(format, args...)}
}

// InvalidInteger builds an ErrInteger error for a malformed lexeme.
func InvalidInteger(lexeme string) Error {
	return Error{Kind: ErrInteger, Message: fmt.Sprintf("invalid integer literal %q", lexeme)}
}

// InvalidFloat builds an ErrFloat error for a malformed lexeme.
func InvalidFloat(lexeme string) Error {
	return Error{Kind: ErrFloat, Message: fmt.Sprintf("invalid float literal %q", lexeme)}
}

// InvalidVersion builds an ErrVersion error for an unsupported version
// identifier.
func InvalidVersion(lexeme string) Error {
	return Error{Kind: ErrVersion, Message: fmt.Sprintf("invalid version identifier %q (only WDL 1.0 and 1.1 are supported)", lexeme)}
}

// TaskRepeatedElement builds an ErrTaskRepeatedElement error.
func TaskRepeatedElement(task, kind string) Error {
	return Error{
		Kind:    ErrTaskRepeatedElement,
		Message: fmt.Sprintf("task %q contains more than one %s element", task, kind),
	}
}

// TaskMissingCommand builds an ErrTaskMissingCommand error.
func TaskMissingCommand(task string) Error {
	return Error{
		Kind:    ErrTaskMissingCommand,
		Message: fmt.Sprintf("task %q is missing a required command element", task),
	}
}

// WorkflowRepeatedElement builds an ErrWorkflowRepeatedElement error.
func WorkflowRepeatedElement(workflow, kind string) Error {
	return Error{
		Kind:    ErrWorkflowRepeatedElement,
		Message: fmt.Sprintf("workflow %q contains more than one %s element", workflow, kind),
	}
}

// DocumentIncomplete builds an ErrDocumentIncomplete error.
func DocumentIncomplete() Error {
	return Error{
		Kind:    ErrDocumentIncomplete,
		Message: "document is missing at least one element of kind struct, task, or workflow",
	}
}

// DocumentMultipleWorkflows builds an ErrDocumentMultipleWorkflows error.
func DocumentMultipleWorkflows() Error {
	return Error{
		Kind:    ErrDocumentMultipleWorkflows,
		Message: "document has more than one workflow element",
	}
}

// CommentRepeatedLine builds an ErrCommentRepeatedLine error.
func CommentRepeatedLine(line int) Error {
	return Error{
		Kind:    ErrCommentRepeatedLine,
		Message: fmt.Sprintf("comment already exists for line %d", line),
	}
}

// DocumentSource tags the origin of a parsed Document for diagnostics.
type DocumentSource struct {
	kind string
	path string
	uri  string
}

// SourceFile tags a Document as having been read from a filesystem path.
func SourceFile(path string) DocumentSource { return DocumentSource{kind: "file", path: path} }

// SourceURI tags a Document as having been read from a URI.
func SourceURI(uri string) DocumentSource { return DocumentSource{kind: "uri", uri: uri} }

// SourceUnknown is the default DocumentSource.
func SourceUnknown() DocumentSource { return DocumentSource{kind: "unknown"} }

func (s DocumentSource) String() string {
	switch s.kind {
	case "file":
		return fmt.Sprintf("file(%s)", s.path)
	case "uri":
		return fmt.Sprintf("uri(%s)", s.uri)
	default:
		return "unknown"
	}
}

// IsFile reports whether s is a File source, returning its path.
func (s DocumentSource) IsFile() (string, bool) {
	return s.path, s.kind == "file"
}

// IsURI reports whether s is a Uri source, returning its value.
func (s DocumentSource) IsURI() (string, bool) {
	return s.uri, s.kind == "uri"
}
