package testutil

import "fmt"

// SeedBuilder builds deterministic byte seeds for OpGenerator without
// hand-writing raw byte sequences.
//
// The builder encodes values according to OpGenerator's byte consumption
// order, so the seed replays exactly the ops appended to it.
type SeedBuilder struct {
	cfg  OpGenConfig
	data []byte
}

// NewSeedBuilder creates a new builder for the given OpGenerator config.
func NewSeedBuilder(cfg *OpGenConfig) *SeedBuilder {
	if cfg == nil {
		panic("seed builder: cfg must not be nil")
	}

	return &SeedBuilder{cfg: *cfg}
}

// Bytes returns a copy of the built seed bytes.
func (b *SeedBuilder) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

// -----------------------------------------------------------------------------
// High-level ops
// -----------------------------------------------------------------------------

// Read appends a ReadBlock of up to n bytes at offset off.
func (b *SeedBuilder) Read(n, off int) *SeedBuilder {
	b.opChoice(0, b.cfg.ReadRate)
	b.appendInt(n, b.cfg.MaxRead+1)
	b.appendInt(off, 4)

	return b
}

// ReadByteOp appends a single byte read.
func (b *SeedBuilder) ReadByteOp() *SeedBuilder {
	b.opChoice(b.cfg.ReadRate, b.cfg.ReadByteRate)

	return b
}

// Skip appends a skip of n bytes. n may be negative down to -(MaxRead+1).
func (b *SeedBuilder) Skip(n int64) *SeedBuilder {
	b.opChoice(b.cfg.ReadRate+b.cfg.ReadByteRate, b.cfg.SkipRate)

	if n >= 0 {
		b.appendInt(int(n), b.cfg.MaxRead+1)
		b.appendByte(1) // not negated

		return b
	}

	b.appendInt(int(-n-1), b.cfg.MaxRead+1)
	b.appendByte(0) // negated

	return b
}

// Mark appends a mark with the given read limit.
func (b *SeedBuilder) Mark(limit int) *SeedBuilder {
	b.opChoice(b.cfg.ReadRate+b.cfg.ReadByteRate+b.cfg.SkipRate, b.cfg.MarkRate)
	b.appendInt(limit, b.cfg.MaxMarkLimit+1)

	return b
}

// Reset appends a reset to the mark.
func (b *SeedBuilder) Reset() *SeedBuilder {
	b.opChoice(b.cfg.ReadRate+b.cfg.ReadByteRate+b.cfg.SkipRate+b.cfg.MarkRate, b.cfg.ResetRate)

	return b
}

// BadBlock appends a ReadBlock on a size-byte buffer at off whose count
// overshoots the buffer by 1+extra bytes.
func (b *SeedBuilder) BadBlock(size, off, extra int) *SeedBuilder {
	start := b.cfg.ReadRate + b.cfg.ReadByteRate + b.cfg.SkipRate + b.cfg.MarkRate + b.cfg.ResetRate
	b.opChoice(start, b.cfg.BadBlockRate)
	b.appendInt(size, 16)
	b.appendInt(off, size+1)
	b.appendInt(extra, 4)

	return b
}

// Available appends an Available query.
func (b *SeedBuilder) Available() *SeedBuilder {
	// NextOp falls through to Available when choice is not in earlier buckets.
	start := b.cfg.ReadRate + b.cfg.ReadByteRate + b.cfg.SkipRate + b.cfg.MarkRate +
		b.cfg.ResetRate + b.cfg.BadBlockRate

	if start >= 100 {
		panic("seed builder: Available cannot be selected when other rates sum to 100")
	}

	b.appendByte(byte(start))

	return b
}

// -----------------------------------------------------------------------------
// Encoding
// -----------------------------------------------------------------------------

func (b *SeedBuilder) opChoice(start, rate int) {
	if rate <= 0 {
		panic(fmt.Sprintf("seed builder: op rate is zero at start=%d", start))
	}

	// NextOp uses choice := NextByte()%100. Any value in [start, start+rate)
	// selects this op. We always choose the range start for stability.
	b.appendByte(byte(start % 100))
}

// appendInt encodes v so that ByteStream.NextInt(maxVal) returns it.
func (b *SeedBuilder) appendInt(v, maxVal int) {
	if v < 0 || v >= maxVal {
		panic(fmt.Sprintf("seed builder: value %d out of range [0, %d)", v, maxVal))
	}

	if maxVal <= 256 {
		b.appendByte(byte(v))

		return
	}

	b.appendByte(byte(v >> 8))
	b.appendByte(byte(v))
}

func (b *SeedBuilder) appendByte(v byte) {
	b.data = append(b.data, v)
}
