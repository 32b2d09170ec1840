package export

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/image"
	"github.com/wippyai/dllexports/request"
)

// Result describes a completed export.
type Result struct {
	Targets []request.Target
	Exports []string
}

// Exporter runs the export transformation against one image backend.
type Exporter struct {
	backend image.Backend
}

// New creates an Exporter driving backend.
func New(backend image.Backend) *Exporter {
	return &Exporter{backend: backend}
}

// Export validates req, loads the input module from bytes, installs every
// marked static method as an unmanaged export and writes one binary per target.
//
// A disabled request returns an empty Result without touching the file system.
// Outputs are written in target order after all mutation has finished; if a
// later target fails, earlier targets stay on disk and the returned error lists
// them in its Value.
func (e *Exporter) Export(req request.Request) (Result, error) {
	targets, err := req.Validate()
	if err != nil {
		return Result{}, err
	}
	if !req.Enabled {
		Logger().Debug("export disabled, nothing to do")
		return Result{}, nil
	}

	// The module is loaded from bytes so the input path is not held open
	// while a target with the same path is written.
	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return Result{}, errors.IO(errors.PhaseLoad, "read input", req.InputPath, err)
	}

	mod, err := e.backend.Load(data, req.InputPath)
	if err != nil {
		return Result{}, errors.Load(fmt.Sprintf("load module %s", req.InputPath), err)
	}

	candidates, err := FindCandidates(mod)
	if err != nil {
		return Result{}, err
	}

	exports := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if err := Install(c); err != nil {
			return Result{}, err
		}
		exports = append(exports, c.ExportName)
	}
	FinalizeModule(mod)

	Logger().Info("installed exports",
		zap.String("input", req.InputPath),
		zap.Strings("exports", exports))

	written := make([]string, 0, len(targets))
	for _, t := range targets {
		if err := e.write(mod, t); err != nil {
			if werr, ok := err.(*errors.Error); ok && len(written) > 0 {
				werr.Value = written
				werr.Detail = fmt.Sprintf("%s (already written: %d target(s))", werr.Detail, len(written))
			}
			return Result{}, err
		}
		written = append(written, t.Path)
	}

	return Result{Targets: targets, Exports: exports}, nil
}

func (e *Exporter) write(mod image.Module, t request.Target) error {
	opts := HeaderOptions(mod, t.Is32Bit)

	if dir := filepath.Dir(t.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IO(errors.PhaseWrite, "create directory", dir, err)
		}
	}

	// Each target goes to its own path; writing every target to the configured
	// output would collapse multi-architecture builds onto one file.
	if err := e.backend.Write(mod, t.Path, opts); err != nil {
		return errors.IO(errors.PhaseWrite, "write "+t.Name+" target", t.Path, err)
	}

	Logger().Info("wrote target",
		zap.String("name", t.Name),
		zap.String("path", t.Path),
		zap.Uint16("machine", uint16(opts.Machine)),
		zap.Uint32("flags", uint32(opts.Flags)))
	return nil
}
