package isolation

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/protocol"
)

// ProcessContext runs the engine as a child process. The engine image is
// copied from the load stream into a private temporary file, so the installed
// engine can be replaced while an invocation is running.
type ProcessContext struct {
	mu       sync.Mutex
	depDir   string
	tempDir  string
	unloaded bool

	// Stderr receives the engine's diagnostic output. Nil keeps it for
	// boundary failure messages only.
	Stderr io.Writer
}

// NewProcessContext creates an empty process context.
func NewProcessContext() *ProcessContext {
	return &ProcessContext{}
}

// ResolveDependencies puts dir first on the child's library search path.
func (c *ProcessContext) ResolveDependencies(_ context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return errors.IsolationFailure("context already unloaded", nil)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.IsolationFailure("companion directory "+dir, err)
	}
	if !info.IsDir() {
		return errors.IsolationFailure("companion path "+dir+" is not a directory", nil)
	}
	c.depDir = dir
	return nil
}

type processHandle struct {
	path string
}

func (h *processHandle) Name() string { return filepath.Base(h.path) }

// Load writes the engine executable to a private copy.
func (c *ProcessContext) Load(_ context.Context, r io.Reader) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return nil, errors.IsolationFailure("context already unloaded", nil)
	}

	if c.tempDir == "" {
		dir, err := os.MkdirTemp("", "dllexports-engine-*")
		if err != nil {
			return nil, errors.IsolationFailure("create engine directory", err)
		}
		c.tempDir = dir
	}

	path := filepath.Join(c.tempDir, engineModule+executableSuffix())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o700)
	if err != nil {
		return nil, errors.IsolationFailure("create engine copy", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.IsolationFailure("copy engine image", err)
	}

	Logger().Debug("engine copied", zap.String("path", path))
	return &processHandle{path: path}, nil
}

// Invoke runs the engine once, writing the call to its stdin and reading the
// reply from its stdout.
func (c *ProcessContext) Invoke(ctx context.Context, h Handle, entryPoint string, args protocol.Args) (protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return protocol.Reply{}, errors.IsolationFailure("context already unloaded", nil)
	}
	ph, ok := h.(*processHandle)
	if !ok || ph == nil {
		return protocol.Reply{}, errors.IsolationFailure("handle does not belong to a process context", nil)
	}

	payload, err := protocol.EncodeCall(protocol.Call{Entry: entryPoint, Args: args})
	if err != nil {
		return protocol.Reply{}, errors.IsolationFailure("encode call", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ph.path, "-entry", entryPoint)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, c.Stderr)
	}
	cmd.Env = searchPathEnv(os.Environ(), c.depDir)

	runErr := cmd.Run()
	if stdout.Len() == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "engine produced no reply"
		}
		return protocol.Reply{}, errors.IsolationFailure(msg, runErr)
	}
	if runErr != nil {
		Logger().Debug("engine exited with error after replying", zap.Error(runErr))
	}

	return protocol.DecodeReply(stdout.Bytes())
}

// Unload removes the private engine copy. Later calls are no-ops.
func (c *ProcessContext) Unload(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unloaded {
		return nil
	}
	c.unloaded = true

	if c.tempDir == "" {
		return nil
	}
	dir := c.tempDir
	c.tempDir = ""

	var err error
	entries, rerr := os.ReadDir(dir)
	if rerr != nil && !os.IsNotExist(rerr) {
		err = multierr.Append(err, rerr)
	}
	for _, e := range entries {
		if rmErr := os.Remove(filepath.Join(dir, e.Name())); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
	}
	if rmErr := os.Remove(dir); rmErr != nil && !os.IsNotExist(rmErr) {
		err = multierr.Append(err, rmErr)
	}

	if err != nil {
		return errors.IsolationFailure("remove engine copy", err)
	}
	return nil
}

// searchPathEnv prepends dir to the variables each platform's loader uses to
// find shared libraries.
func searchPathEnv(env []string, dir string) []string {
	if dir == "" {
		return env
	}

	vars := []string{"PATH", "LD_LIBRARY_PATH", "DYLD_LIBRARY_PATH"}
	out := make([]string, 0, len(env)+len(vars))
	set := map[string]bool{}

	for _, kv := range env {
		key, val, _ := strings.Cut(kv, "=")
		for _, v := range vars {
			if envKeyEqual(key, v) && !set[v] {
				set[v] = true
				if val == "" {
					kv = key + "=" + dir
				} else {
					kv = key + "=" + dir + string(os.PathListSeparator) + val
				}
			}
		}
		out = append(out, kv)
	}
	for _, v := range vars {
		if !set[v] {
			out = append(out, v+"="+dir)
		}
	}
	return out
}

func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

var _ Context = (*ProcessContext)(nil)
