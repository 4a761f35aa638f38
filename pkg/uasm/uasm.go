// package uasm implements a boneless pseudo assembler for the ARM cores of
// NetMD units. It's used to generate firmware patch payloads instead of
// carrying opaque instruction words.
package uasm

import (
	"fmt"
)

// Program is a snippet of ARM code to be placed at a given address.
type Program struct {
	Address uint32
	Listing []Statement
}

func (p *Program) Assemble() []byte {
	ctx := ctx{
		instrAddr: p.Address,
		labels:    make(map[string]uint32),
	}

	// First pass: labels must be created.
	for _, l := range p.Listing {
		l.preprocess(&ctx)
		ctx.instrAddr += l.size()
	}

	// Second pass: bytes must be emitted.
	ctx.instrAddr = p.Address
	var res []byte
	for _, l := range p.Listing {
		isize := l.size()
		if isize == 0 {
			continue
		}
		res = append(res, l.hydrate(&ctx)...)
		ctx.instrAddr += isize
	}
	return res
}

// Word assembles a single instruction at addr.
func Word(addr uint32, s Statement) [4]byte {
	p := Program{Address: addr, Listing: []Statement{s}}
	var res [4]byte
	copy(res[:], p.Assemble())
	return res
}

type Register int

const (
	R0 Register = 0
	R1 Register = 1
	R2 Register = 2
	R3 Register = 3
	R8 Register = 8
	R9 Register = 9
	SP Register = 13
	LR Register = 14
	PC Register = 15
)

func (r Register) Encode() uint32 {
	return uint32(r)
}

type Condition string

const (
	AL Condition = ""
	EQ Condition = "EQ"
	NE Condition = "NE"
)

func (c Condition) Encode() uint32 {
	switch c {
	case AL:
		return 0b1110 << 28
	case EQ:
		return 0b0000 << 28
	case NE:
		return 0b0001 << 28
	}
	panic("invalid condition")
}

// Statement is a listing line, eg. instruction or label.
type Statement interface {
	// preprocess is a first pass assemble function, giving the statements an
	// opportunity to register labels.
	preprocess(c *ctx)
	// hydrate is the second pass assemble function, in which a statement must
	// return concrete data.
	hydrate(c *ctx) []byte
	// size of the instruction in bytes.
	size() uint32
}

type ctx struct {
	instrAddr uint32
	labels    map[string]uint32
}

// instruction is an embeddable struct to be put in any 'typical' 4-byte ARM
// instruction that has no preprocess step.
type instruction struct {
}

func (i instruction) size() uint32 {
	return 4
}

func (i instruction) preprocess(c *ctx) {
}

func p32(u uint32) []byte {
	return []byte{
		byte((u >> 0) & 0xff),
		byte((u >> 8) & 0xff),
		byte((u >> 16) & 0xff),
		byte((u >> 24) & 0xff),
	}
}

type Label string

func (l Label) size() uint32 {
	return 0
}

func (l Label) preprocess(c *ctx) {
	v := string(l)
	if _, ok := c.labels[v]; ok {
		panic(fmt.Sprintf("duplicate label %q", v))
	}
	c.labels[v] = c.instrAddr
}

func (l Label) hydrate(c *ctx) []byte {
	return nil
}

type LabelRef string

func (r LabelRef) resolveBranchTarget(c *ctx) uint32 {
	addr, ok := c.labels[string(r)]
	if !ok {
		panic(fmt.Sprintf("unknown label %q", string(r)))
	}
	return addr
}

// Absolute is a branch target outside of the program, eg. existing
// firmware code.
type Absolute uint32

func (a Absolute) resolveBranchTarget(c *ctx) uint32 {
	return uint32(a)
}

// Embed is raw data, eg. a patched table entry.
type Embed []byte

func (e Embed) size() uint32 {
	return uint32(len([]byte(e)))
}

func (e Embed) preprocess(_ *ctx) {
}

func (e Embed) hydrate(c *ctx) []byte {
	return []byte(e)
}
