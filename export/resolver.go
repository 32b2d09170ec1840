package export

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/image"
)

// MarkerType is the full type name of the export marker attribute.
const MarkerType = "DllExports.DllExportAttribute"

// Candidate is a static method selected for export with its resolved
// export name and calling convention.
type Candidate struct {
	Method     image.Method
	Marker     image.CustomAttribute
	ExportName string
	Convention image.CallingConvention
}

// FindCandidates returns every static method carrying the export marker,
// resolved, in type and method order. Instance methods are skipped even when
// marked. Nothing is mutated.
func FindCandidates(mod image.Module) ([]Candidate, error) {
	var candidates []Candidate

	for _, t := range mod.Types() {
		for _, m := range t.Methods() {
			if !m.IsStatic() {
				continue
			}
			marker := findMarker(m)
			if marker == nil {
				continue
			}

			c, err := ResolveMarker(m, marker)
			if err != nil {
				if e, ok := err.(*errors.Error); ok {
					e.Path = []string{t.FullName(), m.Name()}
				}
				return nil, err
			}

			Logger().Debug("resolved export",
				zap.String("type", t.FullName()),
				zap.String("method", m.Name()),
				zap.String("export", c.ExportName),
				zap.Stringer("convention", c.Convention))

			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

// ResolveMarker derives the export name and calling convention from the
// marker's constructor arguments. It is a pure function of those arguments.
//
//	()                 -> method name, stdcall
//	(name)             -> name, stdcall
//	(name, convention) -> name, convention (winapi folds to stdcall)
func ResolveMarker(m image.Method, marker image.CustomAttribute) (Candidate, error) {
	c := Candidate{
		Method:     m,
		Marker:     marker,
		ExportName: m.Name(),
		Convention: image.StdCall,
	}

	args := marker.Arguments()
	if len(args) > 2 {
		return Candidate{}, errors.InvalidData(errors.PhaseResolve, nil,
			fmt.Sprintf("export marker takes at most 2 arguments, got %d", len(args)))
	}

	if len(args) >= 1 {
		switch v := args[0].Value.(type) {
		case nil:
			// a null name exports under the method's own name
		case string:
			if v != "" {
				c.ExportName = v
			}
		default:
			return Candidate{}, errors.InvalidData(errors.PhaseResolve, nil,
				fmt.Sprintf("export name must be a string, got %T", args[0].Value))
		}
	}

	if len(args) == 2 {
		conv, err := conventionValue(args[1])
		if err != nil {
			return Candidate{}, err
		}
		if _, err := ModifierFor(conv); err != nil {
			return Candidate{}, err
		}
		c.Convention = normalizeConvention(conv)
	}

	return c, nil
}

func findMarker(m image.Method) image.CustomAttribute {
	for _, attr := range m.CustomAttributes() {
		if attr.TypeName() == MarkerType {
			return attr
		}
	}
	return nil
}

// conventionValue accepts any integer encoding of the convention enum.
// Values outside the int32 range are rejected rather than truncated.
func conventionValue(arg image.Argument) (image.CallingConvention, error) {
	var v int64
	switch x := arg.Value.(type) {
	case image.CallingConvention:
		return x, nil
	case int32:
		return image.CallingConvention(x), nil
	case int:
		v = int64(x)
	case int64:
		v = x
	case uint32:
		v = int64(x)
	default:
		return 0, errors.UnsupportedConvention(nil, arg.Value)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.UnsupportedConvention(nil, arg.Value)
	}
	return image.CallingConvention(v), nil
}
