// Package export is the export-transformation engine.
//
// It finds static methods tagged with the export marker
// (DllExports.DllExportAttribute), turns each into an unmanaged export with the
// declared name and calling convention, clears the module's IL-only bit and
// writes one binary per requested architecture:
//
//	backend, err := image.Default()
//	if err != nil {
//	    return err
//	}
//	res, err := export.New(backend).Export(req)
//
// Resolution of every candidate happens before the first mutation, and every
// write happens after the last one. The marker never survives into an output.
//
// # Calling conventions
//
//	StdCall, Winapi -> CallConvStdcall
//	Cdecl           -> CallConvCdecl
//	FastCall        -> CallConvFastcall
//	ThisCall        -> CallConvThiscall
//
// Any other value is rejected with KindUnsupportedConvention.
//
// # Partial output
//
// Targets are written in order. A failure on target N leaves targets 1..N-1 on
// disk; there is no rollback.
package export
