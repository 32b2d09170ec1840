package isolation

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	dllexports "github.com/wippyai/dllexports"
)

// guestMemory wraps wazero memory to implement dllexports.Memory
type guestMemory struct {
	mem api.Memory
}

func (m *guestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	// The view aliases guest memory, which the next guest call may reuse.
	return append([]byte(nil), data...), nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *guestMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// guestAllocator calls the engine's exported allocator. It prefers the
// engine's own dllexports_alloc(size) and falls back to cabi_realloc and
// alloc, which toolchains other than Go export.
type guestAllocator struct {
	allocFn    api.Function
	freeFn     api.Function
	currentCtx context.Context
	stackBuf   [4]uint64
	mu         sync.Mutex
	realloc    bool
}

func newGuestAllocator(mod api.Module) *guestAllocator {
	a := &guestAllocator{}
	switch {
	case mod.ExportedFunction("dllexports_alloc") != nil:
		a.allocFn = mod.ExportedFunction("dllexports_alloc")
		a.freeFn = mod.ExportedFunction("dllexports_free")
	case mod.ExportedFunction("cabi_realloc") != nil:
		a.allocFn = mod.ExportedFunction("cabi_realloc")
		a.realloc = true
	case mod.ExportedFunction("alloc") != nil:
		a.allocFn = mod.ExportedFunction("alloc")
		a.freeFn = mod.ExportedFunction("free")
	}
	return a
}

// setContext sets the context guest allocator calls run under until the
// next call.
func (a *guestAllocator) setContext(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentCtx = ctx
}

func (a *guestAllocator) callContext() context.Context {
	if a.currentCtx == nil {
		return context.Background()
	}
	return a.currentCtx
}

func (a *guestAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, fmt.Errorf("no allocator available")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx := a.callContext()

	if !a.realloc {
		a.stackBuf[0] = uint64(size)
		if err := a.allocFn.CallWithStack(ctx, a.stackBuf[:1]); err != nil {
			return 0, err
		}
		return uint32(a.stackBuf[0]), nil
	}

	a.stackBuf[0] = 0
	a.stackBuf[1] = 0
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = uint64(size)
	if err := a.allocFn.CallWithStack(ctx, a.stackBuf[:4]); err != nil {
		return 0, err
	}
	return uint32(a.stackBuf[0]), nil
}

func (a *guestAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx := a.callContext()

	var err error
	switch {
	case a.realloc:
		// cabi_realloc(ptr, size, align, 0) releases the block
		a.stackBuf[0] = uint64(ptr)
		a.stackBuf[1] = uint64(size)
		a.stackBuf[2] = uint64(align)
		a.stackBuf[3] = 0
		err = a.allocFn.CallWithStack(ctx, a.stackBuf[:4])
	case a.freeFn != nil:
		a.stackBuf[0] = uint64(ptr)
		err = a.freeFn.CallWithStack(ctx, a.stackBuf[:1])
	default:
		return
	}
	if err != nil {
		Logger().Warn("free guest buffer failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

var _ dllexports.Memory = (*guestMemory)(nil)
var _ dllexports.MemorySizer = (*guestMemory)(nil)
var _ dllexports.Allocator = (*guestAllocator)(nil)
