// Package testutil provides deterministic operation streams for fuzzing
// byte streams against an in-memory model.
package testutil

import "fmt"

// Op is one operation on a readable stream. The fuzz harness applies it to
// both the stream under test and a model and compares the results.
type Op interface {
	String() string
}

// OpRead reads up to N bytes with ReadBlock at offset Off of a buffer of
// N+Off bytes.
type OpRead struct {
	N   int
	Off int
}

func (o OpRead) String() string { return fmt.Sprintf("ReadBlock(off=%d, n=%d)", o.Off, o.N) }

// OpReadByte reads a single byte.
type OpReadByte struct{}

func (OpReadByte) String() string { return "ReadByte()" }

// OpSkip skips N bytes. N may be negative.
type OpSkip struct {
	N int64
}

func (o OpSkip) String() string { return fmt.Sprintf("Skip(%d)", o.N) }

// OpMark sets a mark with the given read limit.
type OpMark struct {
	Limit int
}

func (o OpMark) String() string { return fmt.Sprintf("Mark(%d)", o.Limit) }

// OpReset returns to the mark.
type OpReset struct{}

func (OpReset) String() string { return "Reset()" }

// OpAvailable queries the available byte estimate.
type OpAvailable struct{}

func (OpAvailable) String() string { return "Available()" }

// OpBadBlock issues a ReadBlock whose window does not fit the buffer.
type OpBadBlock struct {
	Len   int
	Off   int
	Count int
}

func (o OpBadBlock) String() string {
	return fmt.Sprintf("ReadBlock(len=%d, off=%d, n=%d)", o.Len, o.Off, o.Count)
}
