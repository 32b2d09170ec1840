package image

// CallingConvention mirrors System.Runtime.InteropServices.CallingConvention.
// Values are stored verbatim in export marker arguments and must not be renumbered.
type CallingConvention int32

const (
	Winapi   CallingConvention = 1
	Cdecl    CallingConvention = 2
	StdCall  CallingConvention = 3
	ThisCall CallingConvention = 4
	FastCall CallingConvention = 5
)

func (c CallingConvention) String() string {
	switch c {
	case Winapi:
		return "Winapi"
	case Cdecl:
		return "Cdecl"
	case StdCall:
		return "StdCall"
	case ThisCall:
		return "ThisCall"
	case FastCall:
		return "FastCall"
	default:
		return "unknown"
	}
}

// Machine is the PE file header machine type.
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14c
	MachineAMD64   Machine = 0x8664
)

// ComImageFlags are the COR20 header flags.
type ComImageFlags uint32

const (
	ILOnly           ComImageFlags = 0x00000001
	Bit32Required    ComImageFlags = 0x00000002
	ILLibrary        ComImageFlags = 0x00000004
	StrongNameSigned ComImageFlags = 0x00000008
	NativeEntryPoint ComImageFlags = 0x00000010
	TrackDebugData   ComImageFlags = 0x00010000
	Bit32Preferred   ComImageFlags = 0x00020000
)

// DebuggingModes mirrors System.Diagnostics.DebuggableAttribute.DebuggingModes.
type DebuggingModes int32

const (
	DebuggingNone                   DebuggingModes = 0x000
	DebuggingDefault                DebuggingModes = 0x001
	IgnoreSymbolStoreSequencePoints DebuggingModes = 0x002
	EnableEditAndContinue           DebuggingModes = 0x004
	DisableOptimizations            DebuggingModes = 0x100
)

// Well-known metadata names consumed by the engine.
const (
	DebuggableAttributeType = "System.Diagnostics.DebuggableAttribute"
	DebuggingModesType      = "System.Diagnostics.DebuggableAttribute/DebuggingModes"
	CompilerServicesNS      = "System.Runtime.CompilerServices"
)

// Argument is one custom attribute constructor argument.
// Type is the argument's full type name; Value holds a primitive or nil.
type Argument struct {
	Value any
	Type  string
}

// CustomAttribute is a custom attribute attached to a method or assembly.
type CustomAttribute interface {
	TypeName() string
	Arguments() []Argument
	SetArgument(index int, arg Argument)
}

// Method is a method definition in a loaded module.
type Method interface {
	Name() string
	IsStatic() bool
	CustomAttributes() []CustomAttribute
	// RemoveCustomAttribute detaches attr and reports whether it was present.
	RemoveCustomAttribute(attr CustomAttribute) bool
	// SetUnmanagedExport marks the method as an unmanaged export under name.
	SetUnmanagedExport(name string)
	// AddReturnModifier wraps the return type signature in an optional
	// modifier referencing namespace.typeName.
	AddReturnModifier(namespace, typeName string)
}

// Type is a type definition in a loaded module.
type Type interface {
	FullName() string
	Methods() []Method
}

// Module is the mutable metadata graph of a loaded binary.
type Module interface {
	Types() []Type
	AssemblyAttributes() []CustomAttribute
	Cor20Flags() ComImageFlags
	SetILOnly(ilOnly bool)
}

// WriterOptions are the header options applied when serializing a module.
type WriterOptions struct {
	Flags    ComImageFlags
	Machine  Machine // MachineUnknown keeps the module's own machine
	WritePDB bool
}

// Loader loads a module from an in-memory image. pathHint is the file the
// bytes came from and is only used to locate companion symbol files.
type Loader interface {
	Load(data []byte, pathHint string) (Module, error)
}

// Writer serializes a module to path.
type Writer interface {
	Write(m Module, path string, opts WriterOptions) error
}

// Backend is a binary image library able to both load and write modules.
type Backend interface {
	Loader
	Writer
}
