package testutil

// OpGenConfig configures the operation generator. Rates are percentages
// (0-100) and are checked in field order; the remainder goes to Available.
type OpGenConfig struct {
	ReadRate     int
	ReadByteRate int
	SkipRate     int
	MarkRate     int
	ResetRate    int
	BadBlockRate int

	// MaxRead bounds OpRead.N and OpSkip.N.
	MaxRead int

	// MaxMarkLimit bounds OpMark.Limit.
	MaxMarkLimit int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		ReadRate:     30,
		ReadByteRate: 20,
		SkipRate:     15,
		MarkRate:     12,
		ResetRate:    12,
		BadBlockRate: 5,
		MaxRead:      64,
		MaxMarkLimit: 48,
	}
}

// OpGenerator generates deterministic operations from a byte stream.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
}

// NewOpGenerator creates a new operation generator.
func NewOpGenerator(fuzzBytes []byte, cfg OpGenConfig) *OpGenerator {
	if cfg.MaxRead <= 0 {
		cfg.MaxRead = 1
	}

	if cfg.MaxMarkLimit <= 0 {
		cfg.MaxMarkLimit = 1
	}

	return &OpGenerator{
		stream: NewByteStream(fuzzBytes),
		config: cfg,
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	choice := int(g.stream.NextByte()) % 100
	cumulative := 0

	cumulative += g.config.ReadRate
	if choice < cumulative {
		return OpRead{
			N:   g.stream.NextInt(g.config.MaxRead + 1),
			Off: g.stream.NextInt(4),
		}
	}

	cumulative += g.config.ReadByteRate
	if choice < cumulative {
		return OpReadByte{}
	}

	cumulative += g.config.SkipRate
	if choice < cumulative {
		n := int64(g.stream.NextInt(g.config.MaxRead + 1))
		// Occasionally negative.
		if g.stream.NextInt(8) == 0 {
			n = -n - 1
		}

		return OpSkip{N: n}
	}

	cumulative += g.config.MarkRate
	if choice < cumulative {
		return OpMark{Limit: g.stream.NextInt(g.config.MaxMarkLimit + 1)}
	}

	cumulative += g.config.ResetRate
	if choice < cumulative {
		return OpReset{}
	}

	cumulative += g.config.BadBlockRate
	if choice < cumulative {
		size := g.stream.NextInt(16)
		off := g.stream.NextInt(size + 1)

		// count overshoots the remaining space by at least one.
		return OpBadBlock{Len: size, Off: off, Count: size - off + 1 + g.stream.NextInt(4)}
	}

	return OpAvailable{}
}
