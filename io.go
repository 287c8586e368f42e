package koda

import (
	"os"
	"strings"
)

// isBinaryPath reports whether path names a binary .kod file as opposed to
// a text .koda file, by extension.
func isBinaryPath(path string) bool {
	return strings.HasSuffix(path, ".kod")
}

// LoadFile reads path off the caller's goroutine and parses or decodes it
// depending on its extension: ".kod" is read as canonical binary via
// DecodeSync, anything else as text via Parse. It returns a Future for the
// resulting Value.
func LoadFile(path string, parseOpts ParseOptions, decodeOpts DecodeOptions) *Future[*Value] {
	fut := newFuture[*Value]()
	go func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("load file failed", "path", path, "err", err)
			fut.resolve(nil, err)
			return
		}
		if isBinaryPath(path) {
			v, err := DecodeSync(data, decodeOpts)
			fut.resolve(v, err)
			return
		}
		v, err := Parse(string(data), parseOpts)
		fut.resolve(v, err)
	}()
	return fut
}

// SaveFile stringifies or encodes v depending on path's extension (".kod"
// for canonical binary, anything else for text) and writes it off the
// caller's goroutine. It returns a Future that resolves once the write
// completes.
func SaveFile(path string, v *Value, stringifyOpts StringifyOptions, encodeOpts EncodeOptions) *Future[struct{}] {
	fut := newFuture[struct{}]()
	go func() {
		var data []byte
		if isBinaryPath(path) {
			b, err := Encode(v, encodeOpts)
			if err != nil {
				fut.resolve(struct{}{}, err)
				return
			}
			data = b
		} else {
			s, err := Stringify(v, stringifyOpts)
			if err != nil {
				fut.resolve(struct{}{}, err)
				return
			}
			data = []byte(s)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Error("save file failed", "path", path, "err", err)
			fut.resolve(struct{}{}, err)
			return
		}
		fut.resolve(struct{}{}, nil)
	}()
	return fut
}
