package testutil

// Seed bundles a human-readable name with seed bytes.
//
// Curated seed sequences are hand-crafted to exercise specific scenarios that
// random fuzzing might take a long time to discover. Each seed produces a
// deterministic sequence of operations when fed to OpGenerator with
// DefaultOpGenConfig.
type Seed struct {
	Name string
	Data []byte
}

// CuratedSeeds returns all curated seeds with descriptive names.
func CuratedSeeds() []Seed {
	return []Seed{
		{Name: "mark_reset_cycle", Data: SeedMarkResetCycle()},
		{Name: "mark_grows_buffer", Data: SeedMarkGrowsBuffer()},
		{Name: "mark_overrun", Data: SeedMarkOverrun()},
		{Name: "skip_with_mark", Data: SeedSkipWithMark()},
		{Name: "bad_blocks", Data: SeedBadBlocks()},
		{Name: "drain_to_eof", Data: SeedDrainToEOF()},
	}
}

// defaultSeedConfig returns the config used for building curated seeds.
// This must match DefaultOpGenConfig() for seeds to work correctly.
func defaultSeedConfig() *OpGenConfig {
	cfg := DefaultOpGenConfig()

	return &cfg
}

// SeedMarkResetCycle marks, reads, and resets twice inside the limit.
func SeedMarkResetCycle() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		Mark(8).
		ReadByteOp().
		ReadByteOp().
		Reset().
		Read(4, 0).
		Reset().
		Available().
		Bytes()
}

// SeedMarkGrowsBuffer keeps a mark alive across more bytes than a small
// buffer holds, forcing the buffer to grow.
func SeedMarkGrowsBuffer() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		Mark(40).
		Read(30, 0).
		Reset().
		Read(40, 1).
		Reset().
		ReadByteOp().
		Bytes()
}

// SeedMarkOverrun reads past the mark's limit, so the reset fails.
func SeedMarkOverrun() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		Mark(2).
		Read(5, 0).
		Reset().
		ReadByteOp().
		Reset().
		Bytes()
}

// SeedSkipWithMark skips within and beyond a mark, including a negative
// skip.
func SeedSkipWithMark() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		Mark(10).
		Skip(6).
		Reset().
		Skip(-3).
		Skip(64).
		Available().
		Bytes()
}

// SeedBadBlocks issues out-of-bounds ReadBlock calls between valid reads.
func SeedBadBlocks() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		BadBlock(8, 3, 0).
		ReadByteOp().
		BadBlock(0, 0, 2).
		Read(0, 3).
		ReadByteOp().
		Bytes()
}

// SeedDrainToEOF reads until the stream is exhausted and keeps going.
func SeedDrainToEOF() []byte {
	return NewSeedBuilder(defaultSeedConfig()).
		Read(64, 0).
		Read(64, 2).
		Read(64, 0).
		Read(64, 0).
		ReadByteOp().
		Skip(5).
		Available().
		Reset().
		Bytes()
}
