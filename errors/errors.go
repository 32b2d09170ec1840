package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // request validation
	PhaseResolve  Phase = "resolve"  // export marker resolution
	PhaseMutate   Phase = "mutate"   // metadata mutation
	PhaseWrite    Phase = "write"    // per-target serialization
	PhaseLoad     Phase = "load"     // input module loading
	PhaseIsolate  Phase = "isolate"  // isolation context lifecycle
	PhaseBackend  Phase = "backend"  // image backend registration
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidConfiguration    Kind = "invalid_configuration"
	KindConflictingPaths        Kind = "conflicting_paths"
	KindUnsupportedArchitecture Kind = "unsupported_architecture"
	KindUnsupportedConvention   Kind = "unsupported_convention"
	KindIsolationFailure        Kind = "isolation_failure"
	KindInvalidData             Kind = "invalid_data"
	KindNotFound                Kind = "not_found"
	KindIO                      Kind = "io"
	KindRegistration            Kind = "registration"
)

// Error is the structured error type shared by the engine and the host
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the export taxonomy

// InvalidConfiguration creates a configuration error for the named option
func InvalidConfiguration(option string, detail string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidConfiguration,
		Path:   []string{option},
		Detail: detail,
	}
}

// ConflictingPaths creates an error for an output that would overwrite a removed input
func ConflictingPaths(path string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindConflictingPaths,
		Detail: fmt.Sprintf("cannot remove input file %q when it is also an output", path),
		Value:  path,
	}
}

// UnsupportedArchitecture creates an error for an architecture token outside the supported set
func UnsupportedArchitecture(arch string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindUnsupportedArchitecture,
		Detail: fmt.Sprintf("architecture %q is not supported", arch),
		Value:  arch,
	}
}

// UnsupportedConvention creates an error for an unmapped calling convention value
func UnsupportedConvention(path []string, value any) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnsupportedConvention,
		Path:   path,
		Detail: fmt.Sprintf("calling convention %v is not supported", value),
		Value:  value,
	}
}

// IsolationFailure creates an isolation boundary error
func IsolationFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseIsolate,
		Kind:   KindIsolationFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// IO creates a file system error
func IO(phase Phase, op, path string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: fmt.Sprintf("%s %s", op, path),
		Value:  path,
		Cause:  cause,
	}
}

// Registration creates a backend registration error
func Registration(name string, detail string) *Error {
	return &Error{
		Phase:  PhaseBackend,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s: %s", name, detail),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
