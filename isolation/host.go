package isolation

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/protocol"
	"github.com/wippyai/dllexports/request"
)

// Result describes a successful isolated export.
type Result struct {
	Exports []string
	Outputs []string
}

// Host runs export requests, each inside its own isolation context.
type Host struct {
	dir        string
	engineFile string
	newContext func(ctx context.Context) (Context, error)
}

// Option configures a Host.
type Option func(*Host)

// WithDir sets the directory holding the engine image and its companions.
// It defaults to the directory of the running executable.
func WithDir(dir string) Option {
	return func(h *Host) { h.dir = dir }
}

// WithEngineFile overrides the engine image file name.
func WithEngineFile(name string) Option {
	return func(h *Host) { h.engineFile = name }
}

// WithContextFactory replaces the build's default isolation context.
func WithContextFactory(f func(ctx context.Context) (Context, error)) Option {
	return func(h *Host) { h.newContext = f }
}

// NewHost creates a Host.
func NewHost(opts ...Option) (*Host, error) {
	h := &Host{
		engineFile: EngineFile,
		newContext: NewContext,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.IsolationFailure("locate host executable", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		h.dir = filepath.Dir(exe)
	}
	return h, nil
}

// Dir returns the directory the engine is loaded from.
func (h *Host) Dir() string { return h.dir }

// Run validates req and executes it in a fresh isolation context.
//
// The context is unloaded exactly once before Run returns, whatever the
// outcome. An error raised by the engine is returned as the engine raised it;
// boundary failures are reported as isolation_failure. An unload failure is
// reported only when nothing else failed.
func (h *Host) Run(ctx context.Context, req request.Request) (res Result, err error) {
	if _, err := req.Validate(); err != nil {
		return Result{}, err
	}
	if !req.Enabled {
		return Result{}, nil
	}
	req = absolutePaths(req)

	ic, err := h.newContext(ctx)
	if err != nil {
		return Result{}, errors.IsolationFailure("create isolation context", err)
	}
	defer func() {
		if uerr := ic.Unload(ctx); uerr != nil {
			Logger().Warn("unload isolation context", zap.Error(uerr))
			if err == nil {
				res, err = Result{}, uerr
			}
		}
	}()

	if err := ic.ResolveDependencies(ctx, h.dir); err != nil {
		return Result{}, err
	}

	image, err := h.readEngine()
	if err != nil {
		return Result{}, err
	}

	handle, err := ic.Load(ctx, bytes.NewReader(image))
	if err != nil {
		return Result{}, err
	}
	Logger().Debug("engine loaded", zap.String("engine", handle.Name()))

	reply, err := ic.Invoke(ctx, handle, protocol.EntryExport, protocol.ArgsFrom(req))
	if err != nil {
		return Result{}, err
	}
	if reply.Error != nil {
		return Result{}, reply.Error.Err()
	}

	return Result{Exports: reply.Exports, Outputs: reply.Outputs}, nil
}

// readEngine reads the whole engine image so no handle on the installed file
// outlives this call.
func (h *Host) readEngine() ([]byte, error) {
	path := filepath.Join(h.dir, h.engineFile)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.IsolationFailure("engine image missing",
				errors.NotFound(errors.PhaseIsolate, "engine", path))
		}
		return nil, errors.IsolationFailure("open engine image", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.IsolationFailure("read engine image", err)
	}
	return data, nil
}

// absolutePaths anchors relative paths to the host's working directory, which
// the engine may not share. A bare output file name stays bare because it is
// placed next to the input.
func absolutePaths(req request.Request) request.Request {
	if abs, err := filepath.Abs(req.InputPath); err == nil {
		req.InputPath = abs
	}
	if filepath.Base(req.OutputPath) != req.OutputPath {
		if abs, err := filepath.Abs(req.OutputPath); err == nil {
			req.OutputPath = abs
		}
	}
	return req
}

// stderrWriter forwards engine diagnostics to the package logger.
func stderrWriter() io.Writer {
	return &zapio.Writer{Log: Logger().Named("engine"), Level: zap.DebugLevel}
}
