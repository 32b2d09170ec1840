package export

import (
	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/image"
)

// crashingDebugModes is the DebuggableAttribute value that makes downstream
// debuggers crash once the module carries unmanaged exports.
const crashingDebugModes = image.DebuggingDefault |
	image.IgnoreSymbolStoreSequencePoints |
	image.EnableEditAndContinue |
	image.DisableOptimizations

// Install turns a resolved candidate into an unmanaged export: it sets the
// export name, attaches the calling-convention modifier to the return type and
// strips the export marker.
func Install(c Candidate) error {
	modifier, err := ModifierFor(c.Convention)
	if err != nil {
		return err
	}

	c.Method.SetUnmanagedExport(c.ExportName)
	c.Method.AddReturnModifier(image.CompilerServicesNS, modifier)

	if !c.Method.RemoveCustomAttribute(c.Marker) {
		return errors.New(errors.PhaseMutate, errors.KindInvalidData).
			Path(c.Method.Name()).
			Detail("export marker vanished before it could be removed").
			Build()
	}
	return nil
}

// FinalizeModule applies the module-level changes required once any
// unmanaged export exists.
func FinalizeModule(mod image.Module) {
	mod.SetILOnly(false)
	ClearEditAndContinue(mod)
}

// ClearEditAndContinue clears only the edit-and-continue bit of the assembly's
// DebuggableAttribute, and only when its value is exactly the crashing pattern.
// It reports whether the attribute was changed.
func ClearEditAndContinue(mod image.Module) bool {
	for _, attr := range mod.AssemblyAttributes() {
		if attr.TypeName() != image.DebuggableAttributeType {
			continue
		}

		args := attr.Arguments()
		if len(args) != 1 || args[0].Type != image.DebuggingModesType {
			return false
		}

		modes, ok := debuggingModes(args[0].Value)
		if !ok || modes != crashingDebugModes {
			return false
		}

		attr.SetArgument(0, image.Argument{
			Type:  args[0].Type,
			Value: int32(modes &^ image.EnableEditAndContinue),
		})
		return true
	}
	return false
}

func debuggingModes(v any) (image.DebuggingModes, bool) {
	switch n := v.(type) {
	case int32:
		return image.DebuggingModes(n), true
	case image.DebuggingModes:
		return n, true
	case int:
		return image.DebuggingModes(n), true
	default:
		return 0, false
	}
}

// HeaderOptions builds the writer options for one target. is32Bit nil leaves
// the machine type untouched.
func HeaderOptions(mod image.Module, is32Bit *bool) image.WriterOptions {
	opts := image.WriterOptions{
		Flags:    mod.Cor20Flags() &^ image.ILOnly,
		WritePDB: true,
	}

	if is32Bit != nil {
		if *is32Bit {
			opts.Machine = image.MachineI386
			opts.Flags |= image.Bit32Required
			opts.Flags &^= image.Bit32Preferred
		} else {
			opts.Machine = image.MachineAMD64
		}
	}

	return opts
}
