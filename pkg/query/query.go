// Package query implements the NetMD command codec: a small template
// language that turns hex literals and typed arguments into command buffers,
// and matches response buffers against templates to extract typed values.
//
// Template syntax:
//
//	"00 1806 %b %>w %*"
//
// Pairs of hex digits are literal bytes (whitespace is ignored). Directives:
//
//	%b  one byte
//	%w  two bytes
//	%d  four bytes
//	%q  eight bytes
//	%*  byte array (Format: the argument's data; Scan: all remaining bytes)
//	%?  skip one byte (Scan only)
//	%<  next multi-byte directive is little endian
//	%>  next multi-byte directive is big endian
//
// Format defaults to native byte order, so callers building wire commands
// should always say which one they mean. Scan defaults to little endian.
package query

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxSize is the size of the working buffer a formatted query must fit in.
const MaxSize = 2048

var (
	ErrMalformedTemplate = errors.New("malformed query template")
	ErrArgumentMismatch  = errors.New("query arguments do not match template")
	ErrBufferOverflow    = errors.New("query exceeds working buffer")
	ErrPatternMismatch   = errors.New("response does not match template")
	ErrShortInput        = fmt.Errorf("%w: response too short", ErrPatternMismatch)
)

type Kind uint8

const (
	KindByte Kind = iota
	KindWord
	KindDword
	KindQword
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindWord:
		return "word"
	case KindDword:
		return "dword"
	case KindQword:
		return "qword"
	case KindBytes:
		return "bytes"
	}
	return "UNKNOWN"
}

// Width returns the encoded size of fixed-width kinds, or 0 for KindBytes.
func (k Kind) Width() int {
	switch k {
	case KindByte:
		return 1
	case KindWord:
		return 2
	case KindDword:
		return 4
	case KindQword:
		return 8
	}
	return 0
}

func kindForDirective(d byte) (Kind, bool) {
	switch d {
	case 'b':
		return KindByte, true
	case 'w':
		return KindWord, true
	case 'd':
		return KindDword, true
	case 'q':
		return KindQword, true
	case '*':
		return KindBytes, true
	}
	return 0, false
}

// Value is a single typed query argument or scan capture.
type Value struct {
	Kind  Kind
	Value uint64
	Data  []byte
}

func Byte(v uint8) Value   { return Value{Kind: KindByte, Value: uint64(v)} }
func Word(v uint16) Value  { return Value{Kind: KindWord, Value: uint64(v)} }
func Dword(v uint32) Value { return Value{Kind: KindDword, Value: uint64(v)} }
func Qword(v uint64) Value { return Value{Kind: KindQword, Value: v} }
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Data: b} }

func (v Value) Uint8() uint8   { return uint8(v.Value) }
func (v Value) Uint16() uint16 { return uint16(v.Value) }
func (v Value) Uint32() uint32 { return uint32(v.Value) }
func (v Value) Uint64() uint64 { return v.Value }

func (v Value) size() int {
	if v.Kind == KindBytes {
		return len(v.Data)
	}
	return v.Kind.Width()
}

func (v Value) appendTo(out []byte, order binary.AppendByteOrder) []byte {
	switch v.Kind {
	case KindByte:
		return appendUint(out, uint8(v.Value), order)
	case KindWord:
		return appendUint(out, uint16(v.Value), order)
	case KindDword:
		return appendUint(out, uint32(v.Value), order)
	case KindQword:
		return appendUint(out, v.Value, order)
	}
	return append(out, v.Data...)
}

func (v Value) String() string {
	if v.Kind == KindBytes {
		return fmt.Sprintf("bytes(%x)", v.Data)
	}
	return fmt.Sprintf("%s(%#x)", v.Kind, v.Value)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// literal parses the hex byte at template[i:i+2].
func literal(template string, i int) (byte, error) {
	if i+1 >= len(template) {
		return 0, fmt.Errorf("%w: odd hex digit at offset %d", ErrMalformedTemplate, i)
	}
	hi, ok1 := unhex(template[i])
	lo, ok2 := unhex(template[i+1])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: invalid hex %q at offset %d", ErrMalformedTemplate, template[i:i+2], i)
	}
	return hi<<4 | lo, nil
}

// Format builds a command buffer from template and args.
func Format(template string, args ...Value) ([]byte, error) {
	out := make([]byte, 0, 32)
	argi := 0
	var order binary.AppendByteOrder = binary.NativeEndian

	for i := 0; i < len(template); {
		c := template[i]
		if isSpace(c) {
			i++
			continue
		}
		if c != '%' {
			b, err := literal(template, i)
			if err != nil {
				return nil, err
			}
			if len(out)+1 > MaxSize {
				return nil, ErrBufferOverflow
			}
			out = append(out, b)
			i += 2
			continue
		}

		if i+1 >= len(template) {
			return nil, fmt.Errorf("%w: dangling %% at offset %d", ErrMalformedTemplate, i)
		}
		d := template[i+1]
		i += 2
		switch d {
		case '<':
			order = binary.LittleEndian
			continue
		case '>':
			order = binary.BigEndian
			continue
		}
		kind, ok := kindForDirective(d)
		if !ok {
			return nil, fmt.Errorf("%w: unknown directive %%%c", ErrMalformedTemplate, d)
		}
		if argi >= len(args) {
			return nil, fmt.Errorf("%w: %%%c needs argument %d, only %d given", ErrArgumentMismatch, d, argi, len(args))
		}
		arg := args[argi]
		argi++
		if arg.Kind != kind {
			return nil, fmt.Errorf("%w: argument %d is %s, template wants %s", ErrArgumentMismatch, argi-1, arg.Kind, kind)
		}
		if len(out)+arg.size() > MaxSize {
			return nil, ErrBufferOverflow
		}
		out = arg.appendTo(out, order)
		if kind.Width() > 1 {
			order = binary.NativeEndian
		}
	}

	if argi != len(args) {
		return nil, fmt.Errorf("%w: %d arguments unused", ErrArgumentMismatch, len(args)-argi)
	}
	return out, nil
}

// MustFormat is like Format but panics on error. Only use it with constant
// templates.
func MustFormat(template string, args ...Value) []byte {
	b, err := Format(template, args...)
	if err != nil {
		panic(err)
	}
	return b
}

// Scan matches data against template and returns the captured values in
// template order.
func Scan(data []byte, template string) ([]Value, error) {
	var res []Value
	pos := 0
	var order binary.ByteOrder = binary.LittleEndian

	for i := 0; i < len(template); {
		c := template[i]
		if isSpace(c) {
			i++
			continue
		}
		if c != '%' {
			b, err := literal(template, i)
			if err != nil {
				return nil, err
			}
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: wanted %02x at offset %d", ErrShortInput, b, pos)
			}
			if data[pos] != b {
				return nil, fmt.Errorf("%w: got %02x, wanted %02x at offset %d", ErrPatternMismatch, data[pos], b, pos)
			}
			pos++
			i += 2
			continue
		}

		if i+1 >= len(template) {
			return nil, fmt.Errorf("%w: dangling %% at offset %d", ErrMalformedTemplate, i)
		}
		d := template[i+1]
		i += 2
		switch d {
		case '<':
			order = binary.LittleEndian
			continue
		case '>':
			order = binary.BigEndian
			continue
		case '?':
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: nothing to skip at offset %d", ErrShortInput, pos)
			}
			pos++
			continue
		}
		kind, ok := kindForDirective(d)
		if !ok {
			return nil, fmt.Errorf("%w: unknown directive %%%c", ErrMalformedTemplate, d)
		}
		if kind == KindBytes {
			rest := make([]byte, len(data)-pos)
			copy(rest, data[pos:])
			res = append(res, Bytes(rest))
			pos = len(data)
			continue
		}
		w := kind.Width()
		if pos+w > len(data) {
			return nil, fmt.Errorf("%w: %s at offset %d", ErrShortInput, kind, pos)
		}
		res = append(res, Value{Kind: kind, Value: readUint(data[pos:pos+w], order)})
		pos += w
		if w > 1 {
			order = binary.LittleEndian
		}
	}
	return res, nil
}
