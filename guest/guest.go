// Package guest runs inside the isolation context. It decodes a protocol.Call,
// dispatches it to the matching entry point and encodes the Reply.
package guest

import (
	"sort"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/export"
	"github.com/wippyai/dllexports/image"
	"github.com/wippyai/dllexports/protocol"
)

// backendFunc resolves the image backend on first use, so calls that never
// reach the binary do not need one.
type backendFunc func() (image.Backend, error)

type entryFunc func(protocol.Args, backendFunc) ([]string, []string, error)

var entries = map[string]entryFunc{
	protocol.EntryExport: runExport,
}

// EntryPoints lists the entry points the engine answers to.
func EntryPoints() []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle executes one encoded call and returns the encoded reply. A nil
// backend selects image.Default() once the call needs one. Handle never panics on bad input; every
// failure is reported in the reply.
func Handle(payload []byte, backend image.Backend) []byte {
	reply := dispatch(payload, backend)

	out, err := protocol.EncodeReply(reply)
	if err != nil {
		// Reply holds only strings; this is unreachable in practice.
		out, _ = protocol.EncodeReply(protocol.ReplyFor(nil, nil,
			errors.Wrap(errors.PhaseIsolate, errors.KindInvalidData, err, "encode reply")))
	}
	return out
}

func dispatch(payload []byte, backend image.Backend) protocol.Reply {
	call, err := protocol.DecodeCall(payload)
	if err != nil {
		return protocol.ReplyFor(nil, nil, err)
	}

	fn, ok := entries[call.Entry]
	if !ok {
		return protocol.ReplyFor(nil, nil, errors.NotFound(errors.PhaseIsolate, "entry point", call.Entry))
	}

	exports, outputs, err := fn(call.Args, backendFor(backend))
	return protocol.ReplyFor(exports, outputs, err)
}

func backendFor(backend image.Backend) backendFunc {
	return func() (image.Backend, error) {
		if backend != nil {
			return backend, nil
		}
		b, err := image.Default()
		if err != nil {
			return nil, errors.IsolationFailure("no image backend available in engine", err)
		}
		return b, nil
	}
}

func runExport(args protocol.Args, backend backendFunc) ([]string, []string, error) {
	req := args.Request()
	if _, err := req.Validate(); err != nil {
		return nil, nil, err
	}
	if !req.Enabled {
		return nil, nil, nil
	}

	b, err := backend()
	if err != nil {
		return nil, nil, err
	}

	res, err := export.New(b).Export(req)
	if err != nil {
		return nil, nil, err
	}

	outputs := make([]string, len(res.Targets))
	for i, t := range res.Targets {
		outputs[i] = t.Path
	}
	return res.Exports, outputs, nil
}
