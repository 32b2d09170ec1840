package protocol

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/request"
)

// EntryExport is the engine entry point that runs an export.
const EntryExport = "export"

// Args is the primitive-only argument set passed to the engine.
type Args struct {
	InputPath     string   `json:"input"`
	OutputPath    string   `json:"output"`
	NameFormat    string   `json:"name_format,omitempty"`
	Architectures []string `json:"architectures,omitempty"`
	Enabled       bool     `json:"enabled"`
	RemoveInput   bool     `json:"remove_input,omitempty"`
}

// ArgsFrom copies a request into boundary arguments.
func ArgsFrom(r request.Request) Args {
	return Args{
		InputPath:     r.InputPath,
		OutputPath:    r.OutputPath,
		NameFormat:    r.NameFormat,
		Architectures: append([]string(nil), r.Architectures...),
		Enabled:       r.Enabled,
		RemoveInput:   r.RemoveInput,
	}
}

// Request rebuilds the request on the engine side.
func (a Args) Request() request.Request {
	return request.Request{
		InputPath:     a.InputPath,
		OutputPath:    a.OutputPath,
		NameFormat:    a.NameFormat,
		Architectures: append([]string(nil), a.Architectures...),
		Enabled:       a.Enabled,
		RemoveInput:   a.RemoveInput,
	}
}

// Call is one invocation sent to the engine.
type Call struct {
	Entry string `json:"entry"`
	Args  Args   `json:"args"`
}

// Reply is the engine's answer. A nil Error means success.
type Reply struct {
	Error   *Fault   `json:"error,omitempty"`
	Exports []string `json:"exports,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// Fault is the serialized form of an engine error.
type Fault struct {
	Phase   string   `json:"phase,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Detail  string   `json:"detail"`
	Path    []string `json:"path,omitempty"`
	Cause   string   `json:"cause,omitempty"`
	Written []string `json:"written,omitempty"`
}

// EncodeCall serializes a call.
func EncodeCall(c Call) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCall parses a call.
func DecodeCall(data []byte) (Call, error) {
	var c Call
	if err := json.Unmarshal(data, &c); err != nil {
		return Call{}, errors.Wrap(errors.PhaseIsolate, errors.KindInvalidData, err, "decode call")
	}
	if c.Entry == "" {
		return Call{}, errors.InvalidData(errors.PhaseIsolate, []string{"entry"}, "call has no entry point")
	}
	return c, nil
}

// FaultFrom converts an engine error into its serialized form.
// Structured errors keep their phase, kind, path and detail.
func FaultFrom(err error) *Fault {
	if err == nil {
		return nil
	}

	var e *errors.Error
	if !stderrors.As(err, &e) {
		return &Fault{Detail: err.Error()}
	}

	f := &Fault{
		Phase:  string(e.Phase),
		Kind:   string(e.Kind),
		Detail: e.Detail,
		Path:   append([]string(nil), e.Path...),
	}
	if e.Cause != nil {
		f.Cause = e.Cause.Error()
	}
	if written, ok := e.Value.([]string); ok {
		f.Written = append([]string(nil), written...)
	}
	return f
}

// Err reconstructs the original error. Faults without a kind come back as
// plain errors carrying the original message.
func (f *Fault) Err() error {
	if f == nil {
		return nil
	}
	if f.Kind == "" {
		return stderrors.New(f.Detail)
	}

	e := &errors.Error{
		Phase:  errors.Phase(f.Phase),
		Kind:   errors.Kind(f.Kind),
		Detail: f.Detail,
		Path:   f.Path,
	}
	if f.Cause != "" {
		e.Cause = stderrors.New(f.Cause)
	}
	if len(f.Written) > 0 {
		e.Value = f.Written
	}
	return e
}

// EncodeReply serializes a reply.
func EncodeReply(r Reply) ([]byte, error) {
	return json.Marshal(r)
}

// ReplyFor builds the reply for an engine outcome.
func ReplyFor(exports, outputs []string, err error) Reply {
	if err != nil {
		return Reply{Error: FaultFrom(err)}
	}
	return Reply{Exports: exports, Outputs: outputs}
}

// DecodeReply parses a reply. The returned error is non-nil only when the
// payload itself is malformed; the engine's own error is in Reply.Error.
func DecodeReply(data []byte) (Reply, error) {
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return Reply{}, errors.IsolationFailure(fmt.Sprintf("malformed engine reply (%d bytes)", len(data)), err)
	}
	return r, nil
}
