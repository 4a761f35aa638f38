package query

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles a command buffer from typed parts. It is the statically
// typed counterpart of Format: the kind of every field is fixed by the
// method used to append it, so only literal hex can be malformed.
//
// Errors are sticky: the first one is kept and returned by Build.
type Builder struct {
	buf []byte
	err error
}

func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 32)}
}

func (b *Builder) add(p []byte) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.buf)+len(p) > MaxSize {
		b.err = ErrBufferOverflow
		return b
	}
	b.buf = append(b.buf, p...)
	return b
}

// Hex appends literal bytes given as hex digits, whitespace ignored.
func (b *Builder) Hex(s string) *Builder {
	if b.err != nil {
		return b
	}
	p, err := Format(s)
	if err != nil {
		b.err = fmt.Errorf("hex %q: %w", s, err)
		return b
	}
	return b.add(p)
}

func (b *Builder) Byte(v uint8) *Builder {
	return b.add([]byte{v})
}

func (b *Builder) WordBE(v uint16) *Builder {
	return b.add(binary.BigEndian.AppendUint16(nil, v))
}

func (b *Builder) WordLE(v uint16) *Builder {
	return b.add(binary.LittleEndian.AppendUint16(nil, v))
}

func (b *Builder) DwordBE(v uint32) *Builder {
	return b.add(binary.BigEndian.AppendUint32(nil, v))
}

func (b *Builder) DwordLE(v uint32) *Builder {
	return b.add(binary.LittleEndian.AppendUint32(nil, v))
}

func (b *Builder) QwordBE(v uint64) *Builder {
	return b.add(binary.BigEndian.AppendUint64(nil, v))
}

func (b *Builder) QwordLE(v uint64) *Builder {
	return b.add(binary.LittleEndian.AppendUint64(nil, v))
}

func (b *Builder) Bytes(p []byte) *Builder {
	return b.add(p)
}

// Build returns the assembled buffer, or the first error encountered.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out, nil
}
