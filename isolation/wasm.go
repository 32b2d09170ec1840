package isolation

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	dllexports "github.com/wippyai/dllexports"
	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/protocol"
)

const (
	wasiModule   = "wasi_snapshot_preview1"
	engineModule = "dllexports-engine"

	invokeExport     = "dllexports_invoke"
	initializeExport = "_initialize"
)

// WasmConfig holds configuration for a WasmContext.
type WasmConfig struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 means the wazero default.
	MemoryLimitPages uint32

	// Stdout and Stderr receive the engine's output streams. Nil discards.
	Stdout io.Writer
	Stderr io.Writer
}

// WasmContext runs the engine as a WASI reactor module inside a private
// wazero runtime. Closing the runtime on Unload releases every module,
// compiled artifact and file handle the engine opened.
type WasmContext struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	cfg      WasmConfig
	deps     dependencySet
	unloaded bool
}

// NewWasmContext creates a context backed by a fresh wazero runtime.
func NewWasmContext(ctx context.Context, cfg *WasmConfig) *WasmContext {
	runtimeCfg := wazero.NewRuntimeConfig()

	c := &WasmContext{}
	if cfg != nil {
		c.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}
	c.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return c
}

// ResolveDependencies scans dir for companion .wasm modules. They are matched
// against the engine's import module names during Load.
func (c *WasmContext) ResolveDependencies(_ context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return errors.IsolationFailure("context already unloaded", nil)
	}

	deps, err := scanDependencies(dir, ".wasm", EngineFile)
	if err != nil {
		return err
	}
	c.deps = deps
	Logger().Debug("companion modules", zap.String("dir", dir), zap.Int("count", len(deps)))
	return nil
}

type wasmHandle struct {
	mod    api.Module
	memory dllexports.Memory
	alloc  *guestAllocator
	invoke api.Function
}

func (h *wasmHandle) Name() string { return h.mod.Name() }

// Load compiles the engine from r, instantiates its companion modules and
// then the engine itself, running its reactor initializer.
func (c *WasmContext) Load(ctx context.Context, r io.Reader) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return nil, errors.IsolationFailure("context already unloaded", nil)
	}

	wasmBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.IsolationFailure("read engine image", err)
	}

	compiled, err := c.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.IsolationFailure("compile engine", err)
	}

	if err := c.initWASI(ctx); err != nil {
		return nil, err
	}
	if err := c.instantiateImports(ctx, compiled, map[string]bool{}); err != nil {
		return nil, err
	}

	mod, err := c.runtime.InstantiateModule(ctx, compiled, c.moduleConfig(engineModule))
	if err != nil {
		return nil, errors.IsolationFailure("instantiate engine", err)
	}

	if init := mod.ExportedFunction(initializeExport); init != nil {
		if _, err := init.Call(ctx); err != nil {
			return nil, errors.IsolationFailure("initialize engine", err)
		}
	}

	invoke := mod.ExportedFunction(invokeExport)
	if invoke == nil {
		return nil, errors.IsolationFailure("engine is not usable",
			errors.NotFound(errors.PhaseIsolate, "export", invokeExport))
	}

	mem := mod.Memory()
	if mem == nil {
		return nil, errors.IsolationFailure("engine exports no memory", nil)
	}

	Logger().Debug("engine loaded", zap.Uint32("memory", mem.Size()))
	return &wasmHandle{
		mod:    mod,
		memory: &guestMemory{mem: mem},
		alloc:  newGuestAllocator(mod),
		invoke: invoke,
	}, nil
}

// initWASI instantiates WASI preview1 for the engine and its companions.
func (c *WasmContext) initWASI(ctx context.Context) error {
	if c.runtime.Module(wasiModule) != nil {
		return nil
	}

	builder := c.runtime.NewHostModuleBuilder(wasiModule)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.IsolationFailure("instantiate WASI", err)
	}
	return nil
}

// instantiateImports satisfies every import module of compiled from the
// companion set, depth first, so each dependency exists before its importer.
func (c *WasmContext) instantiateImports(ctx context.Context, compiled wazero.CompiledModule, visiting map[string]bool) error {
	for _, name := range importModules(compiled) {
		if name == wasiModule || c.runtime.Module(name) != nil {
			continue
		}
		if visiting[name] {
			return errors.IsolationFailure("circular companion import "+name, nil)
		}

		path, ok := c.deps.lookup(name)
		if !ok {
			return errors.IsolationFailure("unresolved engine dependency",
				errors.NotFound(errors.PhaseIsolate, "companion module", name))
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.IsolationFailure("read companion module", err)
		}
		dep, err := c.runtime.CompileModule(ctx, data)
		if err != nil {
			return errors.IsolationFailure("compile companion module "+name, err)
		}

		visiting[name] = true
		if err := c.instantiateImports(ctx, dep, visiting); err != nil {
			return err
		}
		delete(visiting, name)

		mod, err := c.runtime.InstantiateModule(ctx, dep, c.moduleConfig(name))
		if err != nil {
			return errors.IsolationFailure("instantiate companion module "+name, err)
		}
		if init := mod.ExportedFunction(initializeExport); init != nil {
			if _, err := init.Call(ctx); err != nil {
				return errors.IsolationFailure("initialize companion module "+name, err)
			}
		}
		Logger().Debug("companion module resolved", zap.String("module", name), zap.String("path", path))
	}
	return nil
}

// importModules lists the distinct module names compiled imports from.
func importModules(compiled wazero.CompiledModule) []string {
	var names []string
	seen := map[string]bool{}

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, def := range compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok {
			add(mod)
		}
	}
	for _, def := range compiled.ImportedMemories() {
		if mod, _, ok := def.Import(); ok {
			add(mod)
		}
	}
	return names
}

func (c *WasmContext) moduleConfig(name string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithFSConfig(wazero.NewFSConfig().WithDirMount("/", "/")).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	// Go's wasip1 port resolves relative paths against PWD.
	if wd, err := os.Getwd(); err == nil {
		cfg = cfg.WithEnv("PWD", wd)
	}
	if c.cfg.Stdout != nil {
		cfg = cfg.WithStdout(c.cfg.Stdout)
	}
	if c.cfg.Stderr != nil {
		cfg = cfg.WithStderr(c.cfg.Stderr)
	}
	return cfg
}

// Invoke passes the encoded call through guest memory and decodes the reply
// the engine returns as a packed ptr<<32|len.
func (c *WasmContext) Invoke(ctx context.Context, h Handle, entryPoint string, args protocol.Args) (protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return protocol.Reply{}, errors.IsolationFailure("context already unloaded", nil)
	}
	wh, ok := h.(*wasmHandle)
	if !ok || wh == nil {
		return protocol.Reply{}, errors.IsolationFailure("handle does not belong to a wasm context", nil)
	}

	payload, err := protocol.EncodeCall(protocol.Call{Entry: entryPoint, Args: args})
	if err != nil {
		return protocol.Reply{}, errors.IsolationFailure("encode call", err)
	}

	wh.alloc.setContext(ctx)
	defer wh.alloc.setContext(nil)

	ptr, err := writeCall(wh.memory, wh.alloc, payload)
	if err != nil {
		return protocol.Reply{}, err
	}
	defer wh.alloc.Free(ptr, uint32(len(payload)), 1)

	results, err := wh.invoke.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return protocol.Reply{}, errors.IsolationFailure("invoke "+entryPoint, err)
	}
	if len(results) != 1 {
		return protocol.Reply{}, errors.IsolationFailure("engine returned no reply", nil)
	}

	data, err := readReply(wh.memory, wh.alloc, results[0])
	if err != nil {
		return protocol.Reply{}, err
	}
	return protocol.DecodeReply(data)
}

// writeCall copies payload into a fresh guest buffer and returns its address.
func writeCall(mem dllexports.Memory, alloc dllexports.Allocator, payload []byte) (uint32, error) {
	ptr, err := alloc.Alloc(uint32(len(payload)), 1)
	if err != nil {
		return 0, errors.IsolationFailure("allocate call buffer", err)
	}
	if err := mem.Write(ptr, payload); err != nil {
		alloc.Free(ptr, uint32(len(payload)), 1)
		return 0, errors.IsolationFailure("write call buffer", err)
	}
	return ptr, nil
}

// readReply copies the reply a packed ptr<<32|len points at and releases the
// guest buffer.
func readReply(mem dllexports.Memory, alloc dllexports.Allocator, packed uint64) ([]byte, error) {
	ptr, length := uint32(packed>>32), uint32(packed)
	if sizer, ok := mem.(dllexports.MemorySizer); ok && uint64(ptr)+uint64(length) > uint64(sizer.Size()) {
		return nil, errors.IsolationFailure(
			fmt.Sprintf("reply buffer %d+%d exceeds guest memory of %d bytes", ptr, length, sizer.Size()), nil)
	}

	data, err := mem.Read(ptr, length)
	if err != nil {
		return nil, errors.IsolationFailure("read reply buffer", err)
	}
	alloc.Free(ptr, length, 1)
	return data, nil
}

// Unload closes the runtime. Later calls are no-ops.
func (c *WasmContext) Unload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return nil
	}
	c.unloaded = true

	rt := c.runtime
	c.runtime = nil
	c.deps = nil
	if rt == nil {
		return nil
	}
	if err := rt.Close(ctx); err != nil {
		return errors.IsolationFailure("close wasm runtime", err)
	}
	return nil
}

var _ Context = (*WasmContext)(nil)
