package koda

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// DecodeOptions bounds resources consumed while decoding untrusted bytes.
type DecodeOptions struct {
	// MaxDepth rejects a decoded tree nested deeper than this. 0 means use
	// the default (256).
	MaxDepth int
	// MaxDictionarySize rejects a key dictionary with more entries than
	// this. 0 means use the default (65536).
	MaxDictionarySize int
	// MaxStringLength rejects any single string (key or value) longer than
	// this many bytes. 0 means use the default (1000000).
	MaxStringLength int
}

// DefaultDecodeOptions returns the default resource bounds for DecodeSync.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{MaxDepth: 256, MaxDictionarySize: 65536, MaxStringLength: 1_000_000}
}

func (o DecodeOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 256
	}
	return o.MaxDepth
}

func (o DecodeOptions) maxDictionarySize() int {
	if o.MaxDictionarySize <= 0 {
		return 65536
	}
	return o.MaxDictionarySize
}

func (o DecodeOptions) maxStringLength() int {
	if o.MaxStringLength <= 0 {
		return 1_000_000
	}
	return o.MaxStringLength
}

type binaryDecoder struct {
	data     []byte
	pos      int
	dict     []string
	maxDepth int
	maxStr   int
}

func (d *binaryDecoder) errAt(offset int, kind error, format string, args ...any) *DecodeError {
	return newDecodeError(offset, kind, format, args...)
}

func (d *binaryDecoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return d.errAt(d.pos, ErrTruncated, "need %d more bytes, have %d", n, len(d.data)-d.pos)
	}
	return nil
}

func (d *binaryDecoder) readU32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *binaryDecoder) readU64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

// DecodeSync validates and reconstructs a Value from canonical .kod bytes.
// It never returns a partial result: the first validation failure aborts
// with a DecodeError carrying the byte offset of the failure.
func DecodeSync(data []byte, opts DecodeOptions) (*Value, error) {
	d := &binaryDecoder{
		data:     data,
		maxDepth: opts.maxDepth(),
		maxStr:   opts.maxStringLength(),
	}

	if len(data) < 5 {
		return nil, d.errAt(0, ErrTruncated, "input is %d bytes, need at least 5", len(data))
	}
	if data[0] != kodaMagic[0] || data[1] != kodaMagic[1] || data[2] != kodaMagic[2] || data[3] != kodaMagic[3] {
		return nil, d.errAt(0, ErrBadMagic, "")
	}
	if data[4] != kodaVersion {
		return nil, d.errAt(4, ErrBadVersion, "got %d", data[4])
	}
	d.pos = 5

	dictCountOffset := d.pos
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if int(n) > opts.maxDictionarySize() {
		return nil, d.errAt(dictCountOffset, ErrDictTooLarge, "dictionary has %d entries, limit is %d", n, opts.maxDictionarySize())
	}

	dict := make([]string, 0, n)
	prev := ""
	for i := uint32(0); i < n; i++ {
		keyOffset := d.pos
		l, err := d.readU32()
		if err != nil {
			return nil, err
		}
		if int(l) > d.maxStr {
			return nil, d.errAt(keyOffset, ErrStringTooLarge, "key is %d bytes, limit is %d", l, d.maxStr)
		}
		if err := d.need(int(l)); err != nil {
			return nil, err
		}
		keyBytes := d.data[d.pos : d.pos+int(l)]
		if off, ok := firstInvalidUTF8(keyBytes); !ok {
			return nil, d.errAt(d.pos+off, ErrInvalidUTF8, "in dictionary key %d", i)
		}
		key := string(keyBytes)
		d.pos += int(l)
		if i > 0 && key <= prev {
			return nil, d.errAt(keyOffset, ErrDictNotSorted, "at index %d", i)
		}
		prev = key
		dict = append(dict, key)
	}
	d.dict = dict

	root, err := d.decodeValue(1)
	if err != nil {
		return nil, err
	}

	if d.pos != len(data) {
		return nil, d.errAt(d.pos, ErrTrailingBytes, "%d bytes remain", len(data)-d.pos)
	}
	return root, nil
}

// firstInvalidUTF8 reports whether b is valid UTF-8, and if not, the byte
// offset within b of the first invalid byte.
func firstInvalidUTF8(b []byte) (int, bool) {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i, false
		}
		i += size
	}
	return 0, true
}

// preallocCap bounds a slice pre-allocation driven by an untrusted u32
// count: append still grows the slice to the real size as elements are
// decoded and bounds-checked, this just stops a bogus huge count from
// forcing a multi-gigabyte allocation up front.
func preallocCap(n uint32) int {
	const capLimit = 4096
	if n > capLimit {
		return capLimit
	}
	return int(n)
}

func (d *binaryDecoder) decodeValue(depth int) (*Value, error) {
	if err := d.need(1); err != nil {
		return nil, err
	}
	tagOffset := d.pos
	tag := d.data[d.pos]
	d.pos++

	switch tag {
	case tagNull:
		return Null, nil
	case tagFalse:
		return NewBool(false), nil
	case tagTrue:
		return NewBool(true), nil
	case tagInt:
		u, err := d.readU64()
		if err != nil {
			return nil, err
		}
		return NewInt(int64(u)), nil
	case tagFloat:
		u, err := d.readU64()
		if err != nil {
			return nil, err
		}
		return NewFloat(math.Float64frombits(u)), nil
	case tagString:
		return d.decodeString()
	case tagBinary:
		return nil, d.errAt(tagOffset, ErrReservedTag, "tag 0x07 is reserved")
	case tagArray:
		return d.decodeArray(depth)
	case tagObject:
		return d.decodeObject(depth)
	default:
		return nil, d.errAt(tagOffset, ErrUnknownTag, "0x%02x", tag)
	}
}

func (d *binaryDecoder) decodeString() (*Value, error) {
	lenOffset := d.pos
	l, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if int(l) > d.maxStr {
		return nil, d.errAt(lenOffset, ErrStringTooLarge, "%d bytes, limit is %d", l, d.maxStr)
	}
	if err := d.need(int(l)); err != nil {
		return nil, err
	}
	b := d.data[d.pos : d.pos+int(l)]
	if off, ok := firstInvalidUTF8(b); !ok {
		return nil, d.errAt(d.pos+off, ErrInvalidUTF8, "")
	}
	s := string(b)
	d.pos += int(l)
	return NewString(s), nil
}

func (d *binaryDecoder) decodeArray(depth int) (*Value, error) {
	if depth > d.maxDepth {
		return nil, d.errAt(d.pos, ErrDepthExceeded, "exceeds %d", d.maxDepth)
	}
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	// n is untrusted; cap the up-front allocation so a tiny malformed
	// payload claiming billions of elements can't force a huge alloc
	// before the per-element need() check ever runs.
	elems := make([]*Value, 0, preallocCap(n))
	for i := uint32(0); i < n; i++ {
		e, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &Value{typ: TypeArray, arrayValue: elems}, nil
}

func (d *binaryDecoder) decodeObject(depth int) (*Value, error) {
	if depth > d.maxDepth {
		return nil, d.errAt(d.pos, ErrDepthExceeded, "exceeds %d", d.maxDepth)
	}
	k, err := d.readU32()
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, preallocCap(k))
	lastIdx := int64(-1)
	for i := uint32(0); i < k; i++ {
		idxOffset := d.pos
		idx, err := d.readU32()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(d.dict) {
			return nil, d.errAt(idxOffset, ErrKeyIndexOutOfRange, "index %d, dictionary has %d entries", idx, len(d.dict))
		}
		if int64(idx) == lastIdx {
			return nil, d.errAt(idxOffset, ErrDuplicateKeyIndex, "index %d", idx)
		}
		if int64(idx) < lastIdx {
			return nil, d.errAt(idxOffset, ErrKeyIndexOutOfOrder, "index %d after %d", idx, lastIdx)
		}
		lastIdx = int64(idx)

		val, err := d.decodeValue(depth + 1)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: d.dict[idx], Value: val})
	}
	return &Value{typ: TypeObject, objectValue: pairs}, nil
}
