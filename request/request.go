package request

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wippyai/dllexports/errors"
)

// DefaultTargetName names the single target produced when no architectures are requested.
const DefaultTargetName = "Default"

// Request is one export invocation as configured by the caller.
type Request struct {
	InputPath     string
	OutputPath    string
	NameFormat    string
	Architectures []string
	Enabled       bool
	RemoveInput   bool
}

// Target is one output binary computed from a request.
// Is32Bit is nil for the architecture-agnostic default target.
type Target struct {
	Is32Bit *bool
	Name    string
	Path    string
}

type architecture struct {
	token   string
	display string
	is32Bit bool
}

// SupportedArchitectures lists the accepted architecture tokens in canonical spelling.
var SupportedArchitectures = []string{"I386", "AMD64"}

var architectures = []architecture{
	{token: "i386", display: "x86", is32Bit: true},
	{token: "amd64", display: "x64", is32Bit: false},
}

func lookupArchitecture(token string) (architecture, bool) {
	for _, a := range architectures {
		if strings.EqualFold(a.token, token) {
			return a, true
		}
	}
	return architecture{}, false
}

// Validate checks the request and returns the computed targets.
// A disabled request is a successful no-op and yields no targets.
func (r Request) Validate() ([]Target, error) {
	if !r.Enabled {
		return nil, nil
	}

	if strings.TrimSpace(r.InputPath) == "" {
		return nil, errors.InvalidConfiguration("input", "input file must be specified")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		return nil, errors.InvalidConfiguration("output", "output file must be specified")
	}

	if len(r.Architectures) > 0 {
		if strings.TrimSpace(r.NameFormat) == "" {
			return nil, errors.InvalidConfiguration("name_format",
				"name format must be specified when architectures are specified")
		}
		for i, arch := range r.Architectures {
			if _, ok := lookupArchitecture(arch); !ok {
				return nil, errors.New(errors.PhaseValidate, errors.KindInvalidConfiguration).
					Path("architectures", strconv.Itoa(i)).
					Value(arch).
					Detail("invalid architecture %q, valid architectures: %s",
						arch, strings.Join(SupportedArchitectures, ", ")).
					Build()
			}
		}
	}

	targets, err := r.Targets()
	if err != nil {
		return nil, err
	}

	if r.RemoveInput {
		input := filepath.Clean(r.InputPath)
		for _, t := range targets {
			if strings.EqualFold(filepath.Clean(t.Path), input) {
				return nil, errors.ConflictingPaths(r.InputPath)
			}
		}
	}

	return targets, nil
}

// Targets computes the output targets without validating required fields.
// Duplicate architectures are kept; each produces its own target in request order.
func (r Request) Targets() ([]Target, error) {
	output := r.normalizedOutput()

	if len(r.Architectures) == 0 {
		return []Target{{Name: DefaultTargetName, Path: output}}, nil
	}

	dir := filepath.Dir(output)
	ext := filepath.Ext(output)
	base := strings.TrimSuffix(filepath.Base(output), ext)

	targets := make([]Target, 0, len(r.Architectures))
	for _, token := range r.Architectures {
		arch, ok := lookupArchitecture(token)
		if !ok {
			return nil, errors.UnsupportedArchitecture(token)
		}

		name := strings.NewReplacer("{name}", base, "{arch}", arch.display).Replace(r.NameFormat)
		is32Bit := arch.is32Bit
		targets = append(targets, Target{
			Name:    arch.display,
			Path:    filepath.Join(dir, name+ext),
			Is32Bit: &is32Bit,
		})
	}

	return targets, nil
}

// normalizedOutput places a bare output file name next to the input and
// inherits the input's extension when the output has none.
func (r Request) normalizedOutput() string {
	output := r.OutputPath

	if filepath.Base(output) == output {
		output = filepath.Join(filepath.Dir(r.InputPath), output)
	}

	if filepath.Ext(output) == "" {
		output += filepath.Ext(r.InputPath)
	}

	return output
}
