// Package isolation runs the export engine behind an execution boundary.
//
// A Host creates one Context per request, points it at the engine's companion
// binaries, loads the engine image from memory, invokes the export entry point
// with primitive arguments and unloads the context. Unload happens exactly
// once on every path and is a no-op when repeated.
//
// Two Context implementations exist and both are always compiled:
//
//   - WasmContext loads dllexports-engine.wasm, a WASI reactor built with
//     GOOS=wasip1 -buildmode=c-shared, into a private wazero runtime.
//     Companion .wasm files in the host directory satisfy engine imports whose
//     module name matches the file name, ignoring case and extension.
//   - ProcessContext runs dllexports-engine as a child process from a private
//     temporary copy and exchanges JSON messages over stdin and stdout.
//
// NewContext and EngineFile pick the default: WasmContext, or ProcessContext
// when built with the dllexports_process tag.
//
// # Errors
//
// Errors raised inside the engine are rebuilt with their original phase, kind,
// path and detail and returned as is. Failures of the boundary itself (missing
// engine, unresolved companion, trap, malformed reply) are isolation_failure
// errors.
package isolation
