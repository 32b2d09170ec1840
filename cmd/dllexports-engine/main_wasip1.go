//go:build wasip1

// Build as a WASI reactor:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o dllexports-engine.wasm ./cmd/dllexports-engine
package main

import (
	"unsafe"

	"github.com/wippyai/dllexports/guest"
)

// buffers keeps host-visible allocations reachable until the host frees them.
var buffers = map[uint32][]byte{}

//go:wasmexport dllexports_alloc
func alloc(size uint32) uint32 {
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	buffers[ptr] = buf
	return ptr
}

//go:wasmexport dllexports_free
func free(ptr uint32) {
	delete(buffers, ptr)
}

//go:wasmexport dllexports_invoke
func invoke(ptr, size uint32) uint64 {
	payload := append([]byte(nil), buffers[ptr][:size]...)

	reply := guest.Handle(payload, nil)

	out := alloc(uint32(len(reply)))
	copy(buffers[out], reply)
	return uint64(out)<<32 | uint64(len(reply))
}

func main() {}
