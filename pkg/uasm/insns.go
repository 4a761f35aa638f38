package uasm

type B struct {
	instruction
	Cond Condition
	Dest BranchTarget
}

func (b B) hydrate(c *ctx) []byte {
	addr := b.Dest.resolveBranchTarget(c)
	pcAddr := c.instrAddr + 8
	offset := (int64(addr) - int64(pcAddr)) / 4
	if offset >= (1<<23) || offset < -(1<<23) {
		panic("target too far away")
	}

	var res uint32
	res |= uint32(offset) & ((1 << 24) - 1)
	res |= 0b1010 << 24
	res |= b.Cond.Encode()
	return p32(res)
}

// Mov with the same source and destination register is the canonical nop.
type Mov struct {
	instruction
	Cond Condition
	Dest Register
	Src  DataSource
}

func (m Mov) hydrate(c *ctx) []byte {
	var res uint32
	res |= m.Src.encodeDataSource(c)
	res |= m.Dest.Encode() << 12
	res |= 0b000110100000 << 16
	res |= m.Cond.Encode()
	return p32(res)
}

type Orr struct {
	instruction
	Cond  Condition
	Dest  Register
	Src   Register
	Compl DataSource
}

func (o Orr) hydrate(c *ctx) []byte {
	var res uint32
	res |= o.Dest.Encode() << 12
	res |= o.Src.Encode() << 16
	res |= o.Compl.encodeDataSource(c)
	res |= 0b00011000 << 20
	res |= o.Cond.Encode()
	return p32(res)
}
