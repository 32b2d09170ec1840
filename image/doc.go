// Package image declares the binary image library consumed by the export engine.
//
// The engine never parses or writes binaries itself. It drives a Backend: a Loader
// that reads a module from an in-memory byte slice (so the source path stays free to
// be overwritten) and a Writer that serializes the mutated module with per-target
// header options.
//
// The enumerations in this package carry on-disk values. CallingConvention,
// ComImageFlags, DebuggingModes and Machine must keep their exact bit patterns;
// a wrong bit corrupts the output binary.
//
// Backends register by name:
//
//	func init() {
//	    if err := image.Register("cecil", &backend{}); err != nil {
//	        panic(err)
//	    }
//	}
//
// The engine binary picks image.Default(), the first registered backend by name.
package image
