// Package imagetest provides an in-memory image.Backend for tests.
//
// Modules are described directly as Go values. Loading returns the configured
// module; writing records the call and drops placeholder files on disk so that
// callers can check which paths were produced.
package imagetest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wippyai/dllexports/image"
)

// Attribute is an in-memory custom attribute.
type Attribute struct {
	Type string
	Args []image.Argument
}

func (a *Attribute) TypeName() string { return a.Type }
func (a *Attribute) Arguments() []image.Argument { return a.Args }

func (a *Attribute) SetArgument(index int, arg image.Argument) {
	a.Args[index] = arg
}

// Method is an in-memory method definition.
type Method struct {
	MethodName      string
	Static          bool
	Attributes      []*Attribute
	ExportName      string
	Exported        bool
	ReturnModifiers []string
}

func (m *Method) Name() string   { return m.MethodName }
func (m *Method) IsStatic() bool { return m.Static }

func (m *Method) CustomAttributes() []image.CustomAttribute {
	out := make([]image.CustomAttribute, len(m.Attributes))
	for i, a := range m.Attributes {
		out[i] = a
	}
	return out
}

func (m *Method) RemoveCustomAttribute(attr image.CustomAttribute) bool {
	for i, a := range m.Attributes {
		if image.CustomAttribute(a) == attr {
			m.Attributes = append(m.Attributes[:i], m.Attributes[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Method) SetUnmanagedExport(name string) {
	m.ExportName = name
	m.Exported = true
}

func (m *Method) AddReturnModifier(namespace, typeName string) {
	m.ReturnModifiers = append(m.ReturnModifiers, namespace+"."+typeName)
}

// HasAttribute reports whether an attribute of the given type is still attached.
func (m *Method) HasAttribute(typeName string) bool {
	for _, a := range m.Attributes {
		if a.Type == typeName {
			return true
		}
	}
	return false
}

// Type is an in-memory type definition.
type Type struct {
	Name       string
	MethodDefs []*Method
}

func (t *Type) FullName() string { return t.Name }

func (t *Type) Methods() []image.Method {
	out := make([]image.Method, len(t.MethodDefs))
	for i, m := range t.MethodDefs {
		out[i] = m
	}
	return out
}

// Module is an in-memory module.
type Module struct {
	TypeDefs []*Type
	Assembly []*Attribute
	Flags    image.ComImageFlags
}

func (m *Module) Types() []image.Type {
	out := make([]image.Type, len(m.TypeDefs))
	for i, t := range m.TypeDefs {
		out[i] = t
	}
	return out
}

func (m *Module) AssemblyAttributes() []image.CustomAttribute {
	out := make([]image.CustomAttribute, len(m.Assembly))
	for i, a := range m.Assembly {
		out[i] = a
	}
	return out
}

func (m *Module) Cor20Flags() image.ComImageFlags { return m.Flags }

func (m *Module) SetILOnly(ilOnly bool) {
	if ilOnly {
		m.Flags |= image.ILOnly
	} else {
		m.Flags &^= image.ILOnly
	}
}

// Write is one recorded Writer call.
type Write struct {
	Path    string
	Options image.WriterOptions
	// MarkersLeft counts methods still carrying MarkerType at write time.
	MarkersLeft int
}

// Backend is an in-memory image.Backend.
type Backend struct {
	Module *Module
	// MarkerType is counted on every write to prove mutation finished first.
	MarkerType string
	// LoadErr and WriteErrAt inject failures; WriteErrAt is the 1-based write
	// number that fails, 0 for none.
	LoadErr    error
	WriteErrAt int

	mu       sync.Mutex
	loads    []string
	writes   []Write
	lastData []byte
}

var _ image.Backend = (*Backend)(nil)

// Load records the path hint and returns the configured module.
func (b *Backend) Load(data []byte, pathHint string) (image.Module, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads = append(b.loads, pathHint)
	b.lastData = append([]byte(nil), data...)
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	if b.Module == nil {
		return nil, fmt.Errorf("imagetest: no module configured")
	}
	return b.Module, nil
}

// Write records the call and writes the loaded bytes to path, plus a .pdb
// companion when requested.
func (b *Backend) Write(m image.Module, path string, opts image.WriterOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.WriteErrAt > 0 && len(b.writes)+1 == b.WriteErrAt {
		return fmt.Errorf("imagetest: injected write failure for %s", path)
	}

	w := Write{Path: path, Options: opts}
	if mod, ok := m.(*Module); ok && b.MarkerType != "" {
		for _, t := range mod.TypeDefs {
			for _, meth := range t.MethodDefs {
				if meth.HasAttribute(b.MarkerType) {
					w.MarkersLeft++
				}
			}
		}
	}

	if err := os.WriteFile(path, b.lastData, 0o644); err != nil {
		return err
	}
	if opts.WritePDB {
		pdb := strings.TrimSuffix(path, filepath.Ext(path)) + ".pdb"
		if err := os.WriteFile(pdb, nil, 0o644); err != nil {
			return err
		}
	}

	b.writes = append(b.writes, w)
	return nil
}

// Loads returns the path hints passed to Load.
func (b *Backend) Loads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.loads...)
}

// Writes returns the recorded Write calls in order.
func (b *Backend) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Write(nil), b.writes...)
}
