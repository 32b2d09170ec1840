//go:build !dllexports_process

package isolation

import "context"

// EngineFile is the engine image the host loads from its own directory.
var EngineFile = engineModule + ".wasm"

// NewContext creates the build's default isolation context: an in-process
// wazero runtime.
func NewContext(ctx context.Context) (Context, error) {
	return NewWasmContext(ctx, &WasmConfig{Stderr: stderrWriter()}), nil
}
