// Package request models one export invocation: the caller's options, their
// validation, and the per-architecture fan-out of output targets.
//
// Validation happens before any file is read or mutated:
//
//	targets, err := req.Validate()
//	if err != nil {
//	    return err // *errors.Error with KindInvalidConfiguration or KindConflictingPaths
//	}
//	for _, t := range targets {
//	    fmt.Println(t.Name, t.Path)
//	}
//
// With no architectures a single "Default" target is produced at the normalized
// output path. Each architecture token (i386, amd64; case-insensitive) produces one
// target named by substituting {name} and {arch} into the name format.
package request
