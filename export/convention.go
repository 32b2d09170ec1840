package export

import (
	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/image"
)

// Modifier type names in System.Runtime.CompilerServices understood by the
// runtime's unmanaged export loader.
const (
	CallConvStdcall  = "CallConvStdcall"
	CallConvCdecl    = "CallConvCdecl"
	CallConvFastcall = "CallConvFastcall"
	CallConvThiscall = "CallConvThiscall"
)

// ModifierFor returns the calling-convention modifier type name for conv.
// Winapi maps to stdcall.
func ModifierFor(conv image.CallingConvention) (string, error) {
	switch conv {
	case image.StdCall, image.Winapi:
		return CallConvStdcall, nil
	case image.Cdecl:
		return CallConvCdecl, nil
	case image.FastCall:
		return CallConvFastcall, nil
	case image.ThisCall:
		return CallConvThiscall, nil
	default:
		return "", errors.UnsupportedConvention(nil, int32(conv))
	}
}

// normalizeConvention folds aliases onto the convention actually emitted.
func normalizeConvention(conv image.CallingConvention) image.CallingConvention {
	if conv == image.Winapi {
		return image.StdCall
	}
	return conv
}
