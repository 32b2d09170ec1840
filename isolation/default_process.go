//go:build dllexports_process

package isolation

import "context"

// EngineFile is the engine image the host loads from its own directory.
var EngineFile = engineModule + executableSuffix()

// NewContext creates the build's default isolation context: a child process
// running a private copy of the engine.
func NewContext(_ context.Context) (Context, error) {
	c := NewProcessContext()
	c.Stderr = stderrWriter()
	return c, nil
}
