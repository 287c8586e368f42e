package koda

import (
	"encoding/binary"
	"errors"
	"io"
)

// defaultMaxFrameSize is used when EncodeStreamOptions/DecodeStreamOptions
// leave MaxFrameSize at zero.
const defaultMaxFrameSize = 1 << 20

// EncodeStreamOptions configures an EncodeStream.
type EncodeStreamOptions struct {
	// MaxDepth bounds each encoded Value, same as EncodeOptions.MaxDepth.
	MaxDepth int
	// HighWaterMark is advisory: this implementation delegates backpressure
	// entirely to the underlying io.Writer's blocking Write, so no frame is
	// ever buffered beyond what the sink itself holds.
	HighWaterMark int
}

func (o EncodeStreamOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 256
	}
	return o.MaxDepth
}

// EncodeStream is the write side of the frame codec: it turns a sequence of
// Values into `[varint length][payload]` frames written to sink in order.
// A Write call only returns once its frame has been handed to sink, which is
// how the sink's own backpressure propagates to the caller.
type EncodeStream struct {
	sink io.Writer
	opts EncodeStreamOptions
}

// NewEncodeStream returns an EncodeStream writing framed records to sink.
func NewEncodeStream(sink io.Writer, opts EncodeStreamOptions) *EncodeStream {
	return &EncodeStream{sink: sink, opts: opts}
}

// Write encodes v and emits its length-prefixed frame to the sink.
func (s *EncodeStream) Write(v *Value) error {
	payload, err := Encode(v, EncodeOptions{MaxDepth: s.opts.maxDepth()})
	if err != nil {
		return err
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := s.sink.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := s.sink.Write(payload); err != nil {
		return err
	}
	return nil
}

// DecodeStreamOptions configures a DecodeStream.
type DecodeStreamOptions struct {
	// MaxFrameSize rejects any frame whose declared length exceeds this.
	// 0 means use the default (1 MiB).
	MaxFrameSize int
	// MaxDepth, MaxDictionarySize, and MaxStringLength are forwarded to
	// DecodeSync for every frame's payload.
	MaxDepth          int
	MaxDictionarySize int
	MaxStringLength   int
	// HighWaterMark is advisory, same as EncodeStreamOptions.HighWaterMark:
	// the internal buffer never grows past one frame's worth of bytes
	// regardless of this value.
	HighWaterMark int
}

func (o DecodeStreamOptions) maxFrameSize() int {
	if o.MaxFrameSize <= 0 {
		return defaultMaxFrameSize
	}
	return o.MaxFrameSize
}

type streamState int8

const (
	stateReadLen streamState = iota
	stateReadPayload
)

// DecodeStream is the read side of the frame codec: it accepts arbitrary
// byte chunks via Write and invokes onValue once per fully reassembled
// frame, in order. Any framing or decode error destroys the stream: it is
// recorded, returned from every subsequent Write and from Close, and no
// further frames are emitted.
type DecodeStream struct {
	opts    DecodeStreamOptions
	onValue func(*Value)

	state     streamState
	varintBuf []byte
	payload   []byte
	frameLen  uint64
	streamPos int64
	err       error
}

// NewDecodeStream returns a DecodeStream that calls onValue for each Value
// reassembled from the bytes written to it.
func NewDecodeStream(opts DecodeStreamOptions, onValue func(*Value)) *DecodeStream {
	return &DecodeStream{opts: opts, onValue: onValue, state: stateReadLen}
}

// Err returns the error that destroyed the stream, if any.
func (s *DecodeStream) Err() error { return s.err }

// Write feeds p into the stream's reassembly state machine. It returns the
// number of bytes consumed before any error; once destroyed, every call
// returns the same error without consuming bytes.
func (s *DecodeStream) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	for i, b := range p {
		if err := s.step(b); err != nil {
			s.err = err
			return i + 1, err
		}
	}
	return len(p), nil
}

// Close signals end of input. A partial frame still buffered is a truncated
// stream error.
func (s *DecodeStream) Close() error {
	if s.err != nil {
		return s.err
	}
	if s.state != stateReadLen || len(s.varintBuf) != 0 {
		s.err = newDecodeError(int(s.streamPos), ErrTruncated, "stream ended mid-frame")
		return s.err
	}
	return nil
}

func (s *DecodeStream) step(b byte) error {
	s.streamPos++
	switch s.state {
	case stateReadLen:
		return s.stepReadLen(b)
	case stateReadPayload:
		return s.stepReadPayload(b)
	default:
		return nil
	}
}

func (s *DecodeStream) stepReadLen(b byte) error {
	s.varintBuf = append(s.varintBuf, b)
	if len(s.varintBuf) > 10 {
		return newDecodeError(int(s.streamPos)-len(s.varintBuf), ErrMalformedVarint, "exceeds 10 bytes")
	}
	if b&0x80 != 0 {
		return nil // continuation bit set, more varint bytes follow
	}
	n, m := binary.Uvarint(s.varintBuf)
	if m <= 0 {
		return newDecodeError(int(s.streamPos)-len(s.varintBuf), ErrMalformedVarint, "overflows u64")
	}
	if n > uint64(s.opts.maxFrameSize()) {
		return newDecodeError(int(s.streamPos)-len(s.varintBuf), ErrFrameTooLarge, "frame is %d bytes, limit is %d", n, s.opts.maxFrameSize())
	}
	s.frameLen = n
	s.varintBuf = s.varintBuf[:0]
	if n == 0 {
		return s.completeFrame()
	}
	s.payload = make([]byte, 0, n)
	s.state = stateReadPayload
	return nil
}

func (s *DecodeStream) stepReadPayload(b byte) error {
	s.payload = append(s.payload, b)
	if uint64(len(s.payload)) == s.frameLen {
		return s.completeFrame()
	}
	return nil
}

func (s *DecodeStream) completeFrame() error {
	decOpts := DecodeOptions{
		MaxDepth:          s.opts.MaxDepth,
		MaxDictionarySize: s.opts.MaxDictionarySize,
		MaxStringLength:   s.opts.MaxStringLength,
	}
	base := int(s.streamPos) - len(s.payload)
	v, err := DecodeSync(s.payload, decOpts)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return &DecodeError{Offset: base + de.Offset, Reason: de.Reason}
		}
		return err
	}
	s.payload = nil
	s.state = stateReadLen
	if s.onValue != nil {
		s.onValue(v)
	}
	return nil
}
