// Package protocol defines the messages that cross the isolation boundary
// between the host and the export engine.
//
// Only primitive values travel across: the host sends a Call naming an entry
// point with its Args, and the engine answers with a Reply. Engine failures are
// flattened into a Fault and rebuilt on the host side with the same phase,
// kind, path and detail, so callers see the error the engine raised rather
// than a boundary wrapper.
package protocol
