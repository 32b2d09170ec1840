package isolation

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/protocol"
	"github.com/wippyai/dllexports/request"
)

type fakeHandle struct{}

func (fakeHandle) Name() string { return "fake" }

// fakeContext records the calls a Host makes.
type fakeContext struct {
	resolveErr error
	loadErr    error
	invokeErr  error
	unloadErr  error
	reply      protocol.Reply

	resolvedDir string
	loaded      []byte
	args        protocol.Args
	entry       string
	unloads     int
}

func (c *fakeContext) ResolveDependencies(_ context.Context, dir string) error {
	c.resolvedDir = dir
	return c.resolveErr
}

func (c *fakeContext) Load(_ context.Context, r io.Reader) (Handle, error) {
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c.loaded = data
	return fakeHandle{}, nil
}

func (c *fakeContext) Invoke(_ context.Context, _ Handle, entry string, args protocol.Args) (protocol.Reply, error) {
	c.entry = entry
	c.args = args
	return c.reply, c.invokeErr
}

func (c *fakeContext) Unload(context.Context) error {
	c.unloads++
	return c.unloadErr
}

func newTestHost(t *testing.T, fc *fakeContext, withEngine bool) *Host {
	t.Helper()
	dir := t.TempDir()
	if withEngine {
		if err := os.WriteFile(filepath.Join(dir, EngineFile), []byte("engine-image"), 0o644); err != nil {
			t.Fatalf("write engine: %v", err)
		}
	}
	h, err := NewHost(WithDir(dir), WithContextFactory(func(context.Context) (Context, error) {
		return fc, nil
	}))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	return h
}

func validRequest(t *testing.T) request.Request {
	input := filepath.Join(t.TempDir(), "Lib.dll")
	return request.Request{Enabled: true, InputPath: input, OutputPath: input}
}

func TestHost_Run(t *testing.T) {
	fc := &fakeContext{reply: protocol.Reply{Exports: []string{"Add"}, Outputs: []string{"/out/Lib.dll"}}}
	h := newTestHost(t, fc, true)
	req := validRequest(t)

	res, err := h.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if fc.unloads != 1 {
		t.Errorf("unloads = %d, want 1", fc.unloads)
	}
	if fc.resolvedDir != h.Dir() {
		t.Errorf("resolved %q, want %q", fc.resolvedDir, h.Dir())
	}
	if string(fc.loaded) != "engine-image" {
		t.Errorf("loaded %q", fc.loaded)
	}
	if fc.entry != protocol.EntryExport || fc.args.InputPath != req.InputPath || !fc.args.Enabled {
		t.Errorf("unexpected invocation %q %+v", fc.entry, fc.args)
	}
	if len(res.Exports) != 1 || len(res.Outputs) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHost_UnloadsExactlyOnce(t *testing.T) {
	engineErr := errors.UnsupportedConvention([]string{"Lib", "Add"}, 9)

	tests := []struct {
		name       string
		fc         *fakeContext
		withEngine bool
		kind       errors.Kind
	}{
		{"dependency failure", &fakeContext{resolveErr: errors.IsolationFailure("scan", nil)}, true, errors.KindIsolationFailure},
		{"missing engine", &fakeContext{}, false, errors.KindIsolationFailure},
		{"load failure", &fakeContext{loadErr: errors.IsolationFailure("compile", nil)}, true, errors.KindIsolationFailure},
		{"boundary failure", &fakeContext{invokeErr: errors.IsolationFailure("trap", nil)}, true, errors.KindIsolationFailure},
		{"engine failure", &fakeContext{reply: protocol.ReplyFor(nil, nil, engineErr)}, true, errors.KindUnsupportedConvention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHost(t, tt.fc, tt.withEngine)

			_, err := h.Run(context.Background(), validRequest(t))
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
			if tt.fc.unloads != 1 {
				t.Errorf("unloads = %d, want 1", tt.fc.unloads)
			}
		})
	}
}

func TestHost_EngineErrorIsNotWrapped(t *testing.T) {
	orig := errors.New(errors.PhaseResolve, errors.KindUnsupportedConvention).
		Path("Lib", "Add").
		Detail("calling convention 9 is not supported").
		Build()
	fc := &fakeContext{reply: protocol.ReplyFor(nil, nil, orig)}
	h := newTestHost(t, fc, true)

	_, err := h.Run(context.Background(), validRequest(t))

	e, ok := err.(*errors.Error)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if e.Kind != orig.Kind || e.Phase != orig.Phase || e.Error() != orig.Error() {
		t.Errorf("got %v, want %v", e, orig)
	}
	if errors.IsKind(err, errors.KindIsolationFailure) {
		t.Error("engine errors must not be masked as isolation failures")
	}
}

func TestHost_UnloadError(t *testing.T) {
	fc := &fakeContext{unloadErr: errors.IsolationFailure("close", nil)}
	h := newTestHost(t, fc, true)

	if _, err := h.Run(context.Background(), validRequest(t)); !errors.IsKind(err, errors.KindIsolationFailure) {
		t.Errorf("unload failure should surface on success, got %v", err)
	}

	engineErr := errors.InvalidConfiguration("output", "boom")
	fc = &fakeContext{unloadErr: errors.IsolationFailure("close", nil), reply: protocol.ReplyFor(nil, nil, engineErr)}
	h = newTestHost(t, fc, true)

	if _, err := h.Run(context.Background(), validRequest(t)); !errors.IsKind(err, errors.KindInvalidConfiguration) {
		t.Errorf("engine error must win over unload failure, got %v", err)
	}
}

func TestHost_NoContextWithoutWork(t *testing.T) {
	created := 0
	h, err := NewHost(WithDir(t.TempDir()), WithContextFactory(func(context.Context) (Context, error) {
		created++
		return &fakeContext{}, nil
	}))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	if _, err := h.Run(context.Background(), request.Request{Enabled: false}); err != nil {
		t.Errorf("disabled run failed: %v", err)
	}
	if _, err := h.Run(context.Background(), request.Request{Enabled: true}); !errors.IsKind(err, errors.KindInvalidConfiguration) {
		t.Errorf("expected invalid_configuration, got %v", err)
	}
	if created != 0 {
		t.Errorf("contexts created = %d, want 0", created)
	}
}

func TestHost_ContextCreationFailure(t *testing.T) {
	h, err := NewHost(WithDir(t.TempDir()), WithContextFactory(func(context.Context) (Context, error) {
		return nil, stderrors.New("no runtime")
	}))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	if _, err := h.Run(context.Background(), validRequest(t)); !errors.IsKind(err, errors.KindIsolationFailure) {
		t.Errorf("expected isolation_failure, got %v", err)
	}
}

func TestAbsolutePaths(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}

	got := absolutePaths(request.Request{InputPath: filepath.Join("bin", "Lib.dll"), OutputPath: "Out.dll"})
	if got.InputPath != filepath.Join(wd, "bin", "Lib.dll") {
		t.Errorf("InputPath = %q", got.InputPath)
	}
	if got.OutputPath != "Out.dll" {
		t.Errorf("bare output must stay bare, got %q", got.OutputPath)
	}

	got = absolutePaths(request.Request{InputPath: "Lib.dll", OutputPath: filepath.Join("out", "Out.dll")})
	if got.OutputPath != filepath.Join(wd, "out", "Out.dll") {
		t.Errorf("OutputPath = %q", got.OutputPath)
	}
}
