package isolation

// Small core-wasm encoder for building engine and companion modules in tests.

const (
	valI32 byte = 0x7f
	valI64 byte = 0x7e
)

const (
	opEnd        byte = 0x0b
	opCall       byte = 0x10
	opDrop       byte = 0x1a
	opLocalGet   byte = 0x20
	opGlobalGet  byte = 0x23
	opGlobalSet  byte = 0x24
	opI32Const   byte = 0x41
	opI64Const   byte = 0x42
	opI32Add     byte = 0x6a
	opI64Or      byte = 0x84
	opI64Shl     byte = 0x86
	opI64ExtendU byte = 0xad
)

type testImport struct {
	module, name    string
	params, results []byte
}

type testFunc struct {
	export          string
	params, results []byte
	body            []byte
}

type testData struct {
	offset int32
	bytes  []byte
}

// testModule describes a module with optional single memory and mutable i32
// globals. Imported functions take the first function indices.
type testModule struct {
	imports []testImport
	funcs   []testFunc
	memory  bool
	globals []int32
	data    []testData
}

func (m testModule) encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types, imports, funcs, globals, exports, code, data [][]byte
	for i, im := range m.imports {
		types = append(types, funcType(im.params, im.results))
		e := appendName(nil, im.module)
		e = appendName(e, im.name)
		e = append(e, 0x00)
		imports = append(imports, appendU32(e, uint32(i)))
	}
	for i, f := range m.funcs {
		idx := uint32(len(m.imports) + i)
		types = append(types, funcType(f.params, f.results))
		funcs = append(funcs, appendU32(nil, idx))
		if f.export != "" {
			exports = append(exports, appendU32(append(appendName(nil, f.export), 0x00), idx))
		}
		body := append([]byte{0x00}, f.body...)
		body = append(body, opEnd)
		code = append(code, append(appendU32(nil, uint32(len(body))), body...))
	}
	if m.memory {
		exports = append(exports, append(appendName(nil, "memory"), 0x02, 0x00))
	}
	for _, g := range m.globals {
		e := []byte{valI32, 0x01, opI32Const}
		globals = append(globals, append(appendS64(e, int64(g)), opEnd))
	}
	for _, d := range m.data {
		e := appendS64([]byte{0x00, opI32Const}, int64(d.offset))
		e = appendU32(append(e, opEnd), uint32(len(d.bytes)))
		data = append(data, append(e, d.bytes...))
	}

	out = appendSection(out, 1, types)
	out = appendSection(out, 2, imports)
	out = appendSection(out, 3, funcs)
	if m.memory {
		out = appendSection(out, 5, [][]byte{{0x00, 0x01}})
	}
	out = appendSection(out, 6, globals)
	out = appendSection(out, 7, exports)
	out = appendSection(out, 10, code)
	out = appendSection(out, 11, data)
	return out
}

func funcType(params, results []byte) []byte {
	b := append([]byte{0x60}, appendU32(nil, uint32(len(params)))...)
	b = append(b, params...)
	b = appendU32(b, uint32(len(results)))
	return append(b, results...)
}

// appendSection writes a section holding entries as a vector. Empty
// sections are omitted.
func appendSection(out []byte, id byte, entries [][]byte) []byte {
	if len(entries) == 0 {
		return out
	}
	content := appendU32(nil, uint32(len(entries)))
	for _, e := range entries {
		content = append(content, e...)
	}
	out = append(out, id)
	out = appendU32(out, uint32(len(content)))
	return append(out, content...)
}

func appendName(b []byte, s string) []byte {
	return append(appendU32(b, uint32(len(s))), s...)
}

func appendU32(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func i32Const(v int32) []byte {
	return appendS64([]byte{opI32Const}, int64(v))
}

// bumpBody returns the global 0 cursor and advances it by local size.
func bumpBody(size byte) []byte {
	return []byte{opGlobalGet, 0, opGlobalGet, 0, opLocalGet, size, opI32Add, opGlobalSet, 0}
}

// packLocals packs locals 0 and 1 as ptr<<32|len.
var packLocals = []byte{
	opLocalGet, 0, opI64ExtendU, opI64Const, 32, opI64Shl,
	opLocalGet, 1, opI64ExtendU, opI64Or,
}

func packConst(ptr, length int32) []byte {
	b := append(i32Const(ptr), opI64ExtendU, opI64Const, 32, opI64Shl)
	b = append(b, i32Const(length)...)
	return append(b, opI64ExtendU, opI64Or)
}

const heapBase = 1024

// engineFuncs are the allocator and invoke exports of a test engine whose
// invoke body is given.
func engineFuncs(invoke []byte) []testFunc {
	return []testFunc{
		{export: "dllexports_alloc", params: []byte{valI32}, results: []byte{valI32}, body: bumpBody(0)},
		{export: "dllexports_free", params: []byte{valI32}},
		{export: invokeExport, params: []byte{valI32, valI32}, results: []byte{valI64}, body: invoke},
	}
}

// echoEngine answers every call with the call payload itself.
func echoEngine() []byte {
	return testModule{
		funcs:   engineFuncs(packLocals),
		memory:  true,
		globals: []int32{heapBase},
	}.encode()
}

// replyEngine answers every call with reply, stored at a fixed offset.
func replyEngine(reply string) []byte {
	const at = 16
	return testModule{
		funcs:   engineFuncs(packConst(at, int32(len(reply)))),
		memory:  true,
		globals: []int32{heapBase},
		data:    []testData{{offset: at, bytes: []byte(reply)}},
	}.encode()
}
