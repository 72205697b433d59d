package testutil

// ByteStream hands out values derived from fuzz input, one byte at a time.
//
// Once the input is used up every call returns a zero value, so a given
// input always yields the same op sequence.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over b.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextBytes reads n bytes, zero-padded once exhausted.
func (s *ByteStream) NextBytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}

	out := make([]byte, n)
	for i := range out {
		out[i] = s.NextByte()
	}

	return out
}

// NextInt returns a value in [0, maxVal) built from up to two bytes.
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	if maxVal <= 256 {
		return int(s.NextByte()) % maxVal
	}

	hi, lo := int(s.NextByte()), int(s.NextByte())

	return (hi<<8 | lo) % maxVal
}

// NextBool returns a boolean derived from the next byte.
func (s *ByteStream) NextBool() bool {
	return s.NextByte()&1 == 1
}
