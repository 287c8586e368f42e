package koda

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"unicode/utf8"
)

var kodaMagic = [4]byte{'K', 'O', 'D', 'A'}

const kodaVersion = 0x01

// Binary type tags, per the canonical layout.
const (
	tagNull   byte = 0x01
	tagFalse  byte = 0x02
	tagTrue   byte = 0x03
	tagInt    byte = 0x04
	tagFloat  byte = 0x05
	tagString byte = 0x06
	tagBinary byte = 0x07 // reserved: encoders MUST NOT emit it
	tagArray  byte = 0x10
	tagObject byte = 0x11
)

// canonicalNaNBits is the single bit pattern all NaN floats collapse to on
// encode: a quiet NaN.
const canonicalNaNBits uint64 = 0x7FF8000000000000

// EncodeOptions bounds resources consumed while encoding.
type EncodeOptions struct {
	// MaxDepth rejects trees nested deeper than this. 0 means use the
	// default (256).
	MaxDepth int
}

// DefaultEncodeOptions returns the default resource bounds for Encode.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{MaxDepth: 256}
}

func (o EncodeOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 256
	}
	return o.MaxDepth
}

// Encode walks v, builds its canonical key dictionary, and returns the
// bit-exact .kod byte layout described in the format specification. Two
// calls on the same (or structurally equal) Value always produce
// byte-identical output.
func Encode(v *Value, opts EncodeOptions) ([]byte, error) {
	maxDepth := opts.maxDepth()
	if err := validateEncodable(v, 1, maxDepth); err != nil {
		return nil, err
	}

	keys := collectSortedKeys(v)
	if len(keys) > math.MaxUint32 {
		return nil, newEncodeError(ErrDictTooLarge, "dictionary has %d keys", len(keys))
	}
	index := make(map[string]uint32, len(keys))
	for i, k := range keys {
		index[k] = uint32(i)
	}

	var buf bytes.Buffer
	buf.Write(kodaMagic[:])
	buf.WriteByte(kodaVersion)

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(keys)))
	buf.Write(u32[:])
	for _, k := range keys {
		binary.BigEndian.PutUint32(u32[:], uint32(len(k)))
		buf.Write(u32[:])
		buf.WriteString(k)
	}

	if err := encodeValue(&buf, v, index); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateEncodable checks depth, key uniqueness, and UTF-8 well-formedness
// ahead of the actual write pass, so Encode never emits a partial result.
func validateEncodable(v *Value, depth, maxDepth int) error {
	if depth > maxDepth {
		return newEncodeError(ErrDepthExceeded, "depth exceeds %d", maxDepth)
	}
	switch v.typ {
	case TypeString:
		if !utf8.ValidString(v.stringValue) {
			return newEncodeError(ErrInvalidUTF8, "invalid UTF-8 in string value")
		}
	case TypeArray:
		for _, e := range v.arrayValue {
			if err := validateEncodable(e, depth+1, maxDepth); err != nil {
				return err
			}
		}
	case TypeObject:
		seen := make(map[string]struct{}, len(v.objectValue))
		for _, p := range v.objectValue {
			if !utf8.ValidString(p.Key) {
				return newEncodeError(ErrInvalidUTF8, "invalid UTF-8 in key %q", p.Key)
			}
			if _, dup := seen[p.Key]; dup {
				return newEncodeError(ErrDuplicateKey, "%q", p.Key)
			}
			seen[p.Key] = struct{}{}
			if err := validateEncodable(p.Value, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, v *Value, index map[string]uint32) error {
	switch v.typ {
	case TypeNull:
		buf.WriteByte(tagNull)
	case TypeBool:
		if v.boolValue {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case TypeInt:
		buf.WriteByte(tagInt)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.intValue))
		buf.Write(b[:])
	case TypeFloat:
		buf.WriteByte(tagFloat)
		bits := math.Float64bits(v.floatValue)
		if math.IsNaN(v.floatValue) {
			bits = canonicalNaNBits
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		buf.Write(b[:])
	case TypeString:
		buf.WriteByte(tagString)
		writeU32String(buf, v.stringValue)
	case TypeArray:
		buf.WriteByte(tagArray)
		var u32 [4]byte
		binary.BigEndian.PutUint32(u32[:], uint32(len(v.arrayValue)))
		buf.Write(u32[:])
		for _, e := range v.arrayValue {
			if err := encodeValue(buf, e, index); err != nil {
				return err
			}
		}
	case TypeObject:
		buf.WriteByte(tagObject)
		type idxPair struct {
			idx uint32
			p   Pair
		}
		pairs := make([]idxPair, len(v.objectValue))
		for i, p := range v.objectValue {
			pairs[i] = idxPair{idx: index[p.Key], p: p}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].idx < pairs[j].idx })

		var u32 [4]byte
		binary.BigEndian.PutUint32(u32[:], uint32(len(pairs)))
		buf.Write(u32[:])
		for _, ip := range pairs {
			binary.BigEndian.PutUint32(u32[:], ip.idx)
			buf.Write(u32[:])
			if err := encodeValue(buf, ip.p.Value, index); err != nil {
				return err
			}
		}
	default:
		return newEncodeError(ErrUnsupportedValue, "unknown value kind")
	}
	return nil
}

func writeU32String(buf *bytes.Buffer, s string) {
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(s)))
	buf.Write(u32[:])
	buf.WriteString(s)
}
