package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/request"
)

// MarkerLibrary is the assembly that defines the export marker. Builds copy it
// next to the input, but nothing needs it once the markers are stripped.
const MarkerLibrary = "DllExports.dll"

// cleanup removes the input when requested and the marker library beside it.
func cleanup(req request.Request, log *zap.Logger) error {
	if req.RemoveInput {
		if err := os.Remove(req.InputPath); err != nil && !os.IsNotExist(err) {
			return errors.IO(errors.PhaseWrite, "remove input", req.InputPath, err)
		}
		log.Debug("input removed", zap.String("path", req.InputPath))
	}

	marker := filepath.Join(filepath.Dir(req.InputPath), MarkerLibrary)
	if err := os.Remove(marker); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IO(errors.PhaseWrite, "remove marker library", marker, err)
	}
	log.Debug("marker library removed", zap.String("path", marker))
	return nil
}
