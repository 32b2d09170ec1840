// Command dllexports converts marked static methods of a managed library into
// unmanaged exports.
//
// Usage:
//
//	dllexports --input bin/Native.dll [--arch I386 --arch AMD64 --name-format "{name}.{arch}"]
//
// Settings may also come from dllexports.yaml or DLLEXPORTS_* variables.
// The engine image (dllexports-engine.wasm) must sit next to this executable.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set at build time.
var Version = "dev"

func main() {
	root := newRootCmd(defaultRunner)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
