// Package dllexports turns static methods of a managed library that carry an
// export marker into unmanaged exports callable from native code.
//
// The transformation runs inside an isolation context so that a host built
// against one runtime can process binaries built against another, and so that
// every resource the engine touched is released when the invocation ends.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	dllexports/          Root package with the guest Memory and Allocator interfaces
//	├── request/         Export request model, validation and architecture fan-out
//	├── export/          Marker resolution, calling conventions and metadata mutation
//	├── image/           Binary image capabilities consumed by the engine, backend registry
//	├── protocol/        Messages crossing the isolation boundary
//	├── guest/           Engine-side dispatch of boundary calls
//	├── isolation/       Isolation contexts and the host that drives them
//	├── errors/          Structured error types shared by host and engine
//	├── internal/config/ Configuration loading
//	└── cmd/             dllexports front-end and dllexports-engine
//
// # Quick Start
//
// Run an export through the default isolation context:
//
//	host, err := isolation.NewHost()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := host.Run(ctx, request.Request{
//	    Enabled:       true,
//	    InputPath:     "bin/Native.dll",
//	    OutputPath:    "bin/Native.dll",
//	    Architectures: []string{"I386", "AMD64"},
//	    NameFormat:    "{name}.{arch}",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Outputs) // [bin/Native.x86.dll bin/Native.x64.dll]
//
// # Isolation Strategies
//
// Two strategies implement isolation.Context and the build selects one:
//
//   - WasmContext (default) runs the engine as a WASI reactor module inside a
//     wazero runtime that is closed on unload.
//   - ProcessContext (build tag dllexports_process) runs the engine as a child
//     process from a private copy of its executable.
//
// Either way the context is unloaded exactly once per invocation, and errors
// raised by the engine reach the caller with their original phase and kind.
//
// # Partial Output
//
// Targets are written in request order after all metadata mutation is done.
// A failure on a later target leaves earlier targets on disk; the returned
// error lists them.
package dllexports
