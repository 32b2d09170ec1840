package isolation

import (
	"context"
	"io"

	"github.com/wippyai/dllexports/protocol"
)

// Context is an execution boundary that hosts the export engine for exactly
// one invocation.
//
// Implementations must make Unload idempotent: the first call releases every
// resource the context holds and later calls return nil.
type Context interface {
	// ResolveDependencies registers dir as the place to find the engine's
	// companion binaries. It must be called before Load.
	ResolveDependencies(ctx context.Context, dir string) error

	// Load reads the engine image from r. Implementations never reopen the
	// engine by path.
	Load(ctx context.Context, r io.Reader) (Handle, error)

	// Invoke calls entryPoint on the loaded engine. The returned error reports
	// boundary failures only; errors raised by the engine are in Reply.Error.
	Invoke(ctx context.Context, h Handle, entryPoint string, args protocol.Args) (protocol.Reply, error)

	// Unload tears the context down.
	Unload(ctx context.Context) error
}

// Handle identifies an engine loaded into a Context.
type Handle interface {
	Name() string
}
