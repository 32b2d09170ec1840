// Package errors provides structured error types for dllexports.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the option path, the offending value and a cause chain, and
// survives the isolation boundary: the engine reports Phase, Kind, Path and Detail and
// the host rebuilds an equal *Error on its side.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindInvalidConfiguration).
//		Path("architectures", "1").
//		Value("arm64").
//		Detail("invalid architecture %q", "arm64").
//		Build()
//
// Or use convenience constructors for the common taxonomy:
//
//	err := errors.ConflictingPaths(input)
//	err := errors.UnsupportedConvention(path, 7)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
