package uasm

// DataSource is an operand which can be a source of data to a non-memory
// operation.
type DataSource interface {
	encodeDataSource(c *ctx) uint32
}

// Branch target is an operand that can be interpreted as a program address.
type BranchTarget interface {
	resolveBranchTarget(c *ctx) uint32
}

// Immediate is a data source (for operations like mov, orr, etc).
type Immediate uint32

func (i Immediate) encodeDataSource(c *ctx) uint32 {
	val := uint32(i)
	if val >= (1 << 8) {
		encodable := false
		for i := 0; i < 16; i++ {
			m := ((val << uint32(i*2)) | (val >> (32 - uint32(i*2)))) & 0xffffffff
			if m < 256 {
				val = (uint32(i) << 8) | m
				encodable = true
				break
			}
		}
		if !encodable {
			panic("unencodable immediate")
		}
	}
	var res uint32
	res |= 1 << 25
	res |= val
	return res
}

func (r Register) encodeDataSource(c *ctx) uint32 {
	var res uint32
	res |= r.Encode()
	return res
}
