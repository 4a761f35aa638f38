package query

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

func appendUint[T constraints.Unsigned](out []byte, v T, order binary.AppendByteOrder) []byte {
	switch x := any(v).(type) {
	case uint8:
		return append(out, x)
	case uint16:
		return order.AppendUint16(out, x)
	case uint32:
		return order.AppendUint32(out, x)
	case uint64:
		return order.AppendUint64(out, x)
	}
	panic("unsupported width")
}

func readUint(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	panic("unsupported width")
}

// BCD encodes v (0-99 per byte) as packed binary coded decimal.
func BCD[T constraints.Unsigned](v T) T {
	var res, shift T
	for v > 0 {
		res |= (v % 10) << shift
		v /= 10
		shift += 4
	}
	return res
}

// FromBCD decodes packed binary coded decimal.
func FromBCD[T constraints.Unsigned](v T) T {
	var res, mul T = 0, 1
	for v > 0 {
		res += (v & 0xf) * mul
		v >>= 4
		mul *= 10
	}
	return res
}
