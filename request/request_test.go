package request

import (
	"path/filepath"
	"testing"

	"github.com/wippyai/dllexports/errors"
)

func TestValidate_Disabled(t *testing.T) {
	// Nothing else is set: a disabled request must not be inspected further.
	targets, err := Request{Enabled: false}.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if targets != nil {
		t.Errorf("expected no targets, got %v", targets)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		kind errors.Kind
		path string
	}{
		{
			name: "missing input",
			req:  Request{Enabled: true, OutputPath: "out.dll"},
			kind: errors.KindInvalidConfiguration,
			path: "input",
		},
		{
			name: "blank input",
			req:  Request{Enabled: true, InputPath: "  ", OutputPath: "out.dll"},
			kind: errors.KindInvalidConfiguration,
			path: "input",
		},
		{
			name: "missing output",
			req:  Request{Enabled: true, InputPath: "foo.dll"},
			kind: errors.KindInvalidConfiguration,
			path: "output",
		},
		{
			name: "architectures without name format",
			req:  Request{Enabled: true, InputPath: "foo.dll", OutputPath: "foo.dll", Architectures: []string{"i386"}},
			kind: errors.KindInvalidConfiguration,
			path: "name_format",
		},
		{
			name: "unknown architecture",
			req: Request{
				Enabled: true, InputPath: "foo.dll", OutputPath: "foo.dll",
				Architectures: []string{"i386", "arm64"}, NameFormat: "{name}.{arch}",
			},
			kind: errors.KindInvalidConfiguration,
			path: "architectures.1",
		},
		{
			name: "remove input onto itself",
			req:  Request{Enabled: true, InputPath: "foo.dll", OutputPath: "foo.dll", RemoveInput: true},
			kind: errors.KindConflictingPaths,
		},
		{
			name: "remove input differing only in case",
			req:  Request{Enabled: true, InputPath: "/build/Foo.DLL", OutputPath: "/build/foo.dll", RemoveInput: true},
			kind: errors.KindConflictingPaths,
		},
		{
			name: "remove input with arch format equal to input",
			req: Request{
				Enabled: true, InputPath: "/build/foo.dll", OutputPath: "/build/foo.dll",
				Architectures: []string{"amd64"}, NameFormat: "{name}", RemoveInput: true,
			},
			kind: errors.KindConflictingPaths,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := tt.req.Validate()
			if err == nil {
				t.Fatalf("expected error, got targets %v", targets)
			}
			e, ok := err.(*errors.Error)
			if !ok {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.kind)
			}
			if e.Phase != errors.PhaseValidate {
				t.Errorf("Phase = %v, want %v", e.Phase, errors.PhaseValidate)
			}
			if tt.path != "" {
				if got := joinPath(e.Path); got != tt.path {
					t.Errorf("Path = %q, want %q", got, tt.path)
				}
			}
		})
	}
}

func TestValidate_DefaultTarget(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		want   string
	}{
		{"same path", "/build/foo.dll", "/build/foo.dll", "/build/foo.dll"},
		{"bare output uses input directory", "/build/foo.dll", "bar.dll", "/build/bar.dll"},
		{"extension inherited from input", "/build/foo.dll", "/out/bar", "/out/bar.dll"},
		{"bare output without extension", "/build/foo.dll", "bar", "/build/bar.dll"},
		{"relative input", "foo.dll", "foo.dll", "foo.dll"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := Request{Enabled: true, InputPath: tt.input, OutputPath: tt.output}.Validate()
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(targets) != 1 {
				t.Fatalf("expected exactly one target, got %d", len(targets))
			}
			if targets[0].Name != DefaultTargetName {
				t.Errorf("Name = %q, want %q", targets[0].Name, DefaultTargetName)
			}
			if targets[0].Is32Bit != nil {
				t.Errorf("Is32Bit = %v, want nil", *targets[0].Is32Bit)
			}
			if want := filepath.FromSlash(tt.want); targets[0].Path != want {
				t.Errorf("Path = %q, want %q", targets[0].Path, want)
			}
		})
	}
}

func TestValidate_SingleArchitecture(t *testing.T) {
	req := Request{
		Enabled:       true,
		InputPath:     "foo.dll",
		OutputPath:    "foo.dll",
		Architectures: []string{"i386"},
		NameFormat:    "{name}.{arch}",
	}

	targets, err := req.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].Path != "foo.x86.dll" {
		t.Errorf("Path = %q, want foo.x86.dll", targets[0].Path)
	}
	if targets[0].Name != "x86" {
		t.Errorf("Name = %q, want x86", targets[0].Name)
	}
	if targets[0].Is32Bit == nil || !*targets[0].Is32Bit {
		t.Errorf("Is32Bit should be true")
	}
}

func TestValidate_ArchitectureOrder(t *testing.T) {
	req := Request{
		Enabled:       true,
		InputPath:     "/build/foo.dll",
		OutputPath:    "/build/foo.dll",
		Architectures: []string{"I386", "Amd64"},
		NameFormat:    "{name}.foo.{arch}",
	}

	targets, err := req.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := []struct {
		name    string
		path    string
		is32Bit bool
	}{
		{"x86", "/build/foo.foo.x86.dll", true},
		{"x64", "/build/foo.foo.x64.dll", false},
	}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(targets))
	}
	for i, w := range want {
		if targets[i].Name != w.name {
			t.Errorf("targets[%d].Name = %q, want %q", i, targets[i].Name, w.name)
		}
		if targets[i].Path != filepath.FromSlash(w.path) {
			t.Errorf("targets[%d].Path = %q, want %q", i, targets[i].Path, w.path)
		}
		if targets[i].Is32Bit == nil || *targets[i].Is32Bit != w.is32Bit {
			t.Errorf("targets[%d].Is32Bit mismatch, want %v", i, w.is32Bit)
		}
	}
}

// Duplicate architectures are preserved: each entry yields its own target.
func TestTargets_DuplicateArchitecturesPreserved(t *testing.T) {
	req := Request{
		Enabled:       true,
		InputPath:     "/build/foo.dll",
		OutputPath:    "/build/foo.dll",
		Architectures: []string{"amd64", "AMD64"},
		NameFormat:    "{name}-{arch}",
	}

	targets, err := req.Validate()
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Path != targets[1].Path {
		t.Errorf("duplicate targets should share a path: %q vs %q", targets[0].Path, targets[1].Path)
	}
}

func TestTargets_UnsupportedArchitecture(t *testing.T) {
	req := Request{InputPath: "foo.dll", OutputPath: "foo.dll", Architectures: []string{"mips"}, NameFormat: "{arch}"}

	_, err := req.Targets()
	if !errors.IsKind(err, errors.KindUnsupportedArchitecture) {
		t.Fatalf("expected unsupported architecture, got %v", err)
	}
}

func TestTargets_SubstitutionIsSinglePass(t *testing.T) {
	req := Request{
		InputPath:     "/build/{arch}.dll",
		OutputPath:    "/build/{arch}.dll",
		Architectures: []string{"amd64"},
		NameFormat:    "{name}_{arch}",
	}

	targets, err := req.Targets()
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if want := filepath.FromSlash("/build/{arch}_x64.dll"); targets[0].Path != want {
		t.Errorf("Path = %q, want %q", targets[0].Path, want)
	}
}

func TestValidate_RemoveInputAllowedWithDistinctOutputs(t *testing.T) {
	req := Request{
		Enabled:       true,
		InputPath:     "/build/foo.dll",
		OutputPath:    "/build/foo.dll",
		Architectures: []string{"i386"},
		NameFormat:    "{name}.{arch}",
		RemoveInput:   true,
	}

	if _, err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func joinPath(p []string) string {
	out := ""
	for i, s := range p {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
