package query

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	res, err := Format("00 1822 ff 00 %<d %b 0000 %* %<w",
		Dword(0x03802080), Byte(1), Bytes([]byte{0x05}), Word(0xbeef))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want, _ := hex.DecodeString("001822ff0080208003010000" + "05" + "efbe")
	if !bytes.Equal(res, want) {
		t.Fatalf("wrong query: %x, want %x", res, want)
	}
}

func TestFormatBigEndian(t *testing.T) {
	res, err := Format("1850 ff010000 0000 %>w %>d %>q", Word(0x0102), Dword(0x03040506), Qword(0x0708090a0b0c0d0e))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want, _ := hex.DecodeString("1850ff0100000000" + "0102" + "03040506" + "0708090a0b0c0d0e")
	if !bytes.Equal(res, want) {
		t.Fatalf("wrong query: %x, want %x", res, want)
	}
}

func TestFormatEndianOnlyAppliesOnce(t *testing.T) {
	le, err := Format("%<w %<w", Word(0x0102), Word(0x0304))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	mixed, err := Format("%>w %<w", Word(0x0102), Word(0x0304))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !bytes.Equal(le, []byte{0x02, 0x01, 0x04, 0x03}) {
		t.Errorf("wrong little endian encoding: %x", le)
	}
	if !bytes.Equal(mixed, []byte{0x01, 0x02, 0x04, 0x03}) {
		t.Errorf("wrong mixed encoding: %x", mixed)
	}
}

func TestEndianSkipsSingleBytes(t *testing.T) {
	res, err := Format("%> %b %* %w %w", Byte(0xaa), Bytes([]byte{0xbb}), Word(0x0102), Word(0x0304))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := []byte{0xaa, 0xbb, 0x01, 0x02}
	if !bytes.Equal(res[:4], want) {
		t.Errorf("wrong encoding: %x, want %x", res, want)
	}
	caps, err := Scan([]byte{0xaa, 0x01, 0x02, 0x03, 0x04}, "%> %b %w %w")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if caps[1].Uint16() != 0x0102 || caps[2].Uint16() != 0x0403 {
		t.Errorf("got %v", caps)
	}
}

func TestFormatErrors(t *testing.T) {
	for _, c := range []struct {
		name     string
		template string
		args     []Value
		want     error
	}{
		{"bad hex", "00 1g", nil, ErrMalformedTemplate},
		{"odd digit", "001", nil, ErrMalformedTemplate},
		{"unknown directive", "%x", []Value{Byte(1)}, ErrMalformedTemplate},
		{"dangling percent", "00 %", nil, ErrMalformedTemplate},
		{"missing argument", "%b %b", []Value{Byte(1)}, ErrArgumentMismatch},
		{"wrong kind", "%w", []Value{Byte(1)}, ErrArgumentMismatch},
		{"unused argument", "%b", []Value{Byte(1), Byte(2)}, ErrArgumentMismatch},
		{"overflow", "00 %*", []Value{Bytes(make([]byte, MaxSize))}, ErrBufferOverflow},
	} {
		_, err := Format(c.template, c.args...)
		if !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestFormatExactlyMaxSize(t *testing.T) {
	res, err := Format("%*", Bytes(make([]byte, MaxSize)))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(res) != MaxSize {
		t.Fatalf("got %d bytes", len(res))
	}
}

func TestLoopback(t *testing.T) {
	template := "00 18 %<b %<w %<d %<q ff"
	args := []Value{Byte(0x42), Word(0x1234), Dword(0xdeadbeef), Qword(0x0102030405060708)}
	data, err := Format(template, args...)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	got, err := Scan(data, template)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("got %d captures, want %d", len(got), len(args))
	}
	for i := range args {
		if got[i].Kind != args[i].Kind || got[i].Value != args[i].Value {
			t.Errorf("capture %d: got %v, want %v", i, got[i], args[i])
		}
	}
}

func TestScan(t *testing.T) {
	reply, _ := hex.DecodeString("09182100aa8020800304bbcc0102030405ee")
	caps, err := Scan(reply, "%? 1821 00 %? %d %b %?%? %*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(caps) != 3 {
		t.Fatalf("got %d captures", len(caps))
	}
	if caps[0].Uint32() != 0x03802080 {
		t.Errorf("address: got %#x", caps[0].Uint32())
	}
	if caps[1].Uint8() != 4 {
		t.Errorf("size: got %d", caps[1].Uint8())
	}
	if want := []byte{1, 2, 3, 4, 5, 0xee}; !bytes.Equal(caps[2].Data, want) {
		t.Errorf("data: got %x, want %x", caps[2].Data, want)
	}

	// Captured arrays must not alias the input.
	reply[len(reply)-1] = 0
	if caps[2].Data[5] != 0xee {
		t.Errorf("capture aliases input buffer")
	}
}

func TestScanBigEndian(t *testing.T) {
	caps, err := Scan([]byte{0x00, 0x05, 0x00, 0x05}, "%>w %w")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if caps[0].Uint16() != 5 || caps[1].Uint16() != 0x0500 {
		t.Fatalf("got %v", caps)
	}
}

func TestScanFailures(t *testing.T) {
	caps, err := Scan([]byte{0x09, 0x18, 0x22}, "%? 1821 %*")
	if !errors.Is(err, ErrPatternMismatch) {
		t.Errorf("mismatch: got %v", err)
	}
	if caps != nil {
		t.Errorf("captures returned on failure: %v", caps)
	}

	caps, err = Scan([]byte{0x09, 0x18, 0x21, 0x01}, "%? 1821 %w")
	if !errors.Is(err, ErrShortInput) || !errors.Is(err, ErrPatternMismatch) {
		t.Errorf("short: got %v", err)
	}
	if caps != nil {
		t.Errorf("captures returned on failure: %v", caps)
	}

	if _, err := Scan(nil, "%?"); !errors.Is(err, ErrShortInput) {
		t.Errorf("skip past end: got %v", err)
	}
}

func TestScanEmptyRemainder(t *testing.T) {
	caps, err := Scan([]byte{0x01}, "01 %*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(caps) != 1 || len(caps[0].Data) != 0 {
		t.Fatalf("got %v", caps)
	}
}

func TestBuilder(t *testing.T) {
	res, err := NewBuilder().
		Hex("00 1850 ff01 0000 0000").
		WordBE(0x0102).
		WordLE(0x0304).
		DwordBE(1).
		DwordLE(2).
		Byte(0xaa).
		Bytes([]byte("ok")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, _ := hex.DecodeString("001850ff0100000000" + "0102" + "0403" + "00000001" + "02000000" + "aa" + "6f6b")
	if !bytes.Equal(res, want) {
		t.Fatalf("got %x, want %x", res, want)
	}

	viaFormat, err := Format("00 1850 ff01 0000 0000 %>w %<w %>d %<d %b %*",
		Word(0x0102), Word(0x0304), Dword(1), Dword(2), Byte(0xaa), Bytes([]byte("ok")))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !bytes.Equal(res, viaFormat) {
		t.Fatalf("builder and template disagree: %x vs %x", res, viaFormat)
	}
}

func TestBuilderErrors(t *testing.T) {
	if _, err := NewBuilder().Hex("0z").Byte(1).Build(); !errors.Is(err, ErrMalformedTemplate) {
		t.Errorf("bad hex: got %v", err)
	}
	if _, err := NewBuilder().Hex("%b").Build(); !errors.Is(err, ErrArgumentMismatch) {
		t.Errorf("directive in hex: got %v", err)
	}
	if _, err := NewBuilder().Bytes(make([]byte, MaxSize)).Byte(0).Build(); !errors.Is(err, ErrBufferOverflow) {
		t.Errorf("overflow: got %v", err)
	}
}

func TestBCD(t *testing.T) {
	if got := BCD(uint8(59)); got != 0x59 {
		t.Errorf("BCD(59) = %#x", got)
	}
	if got := BCD(uint16(1234)); got != 0x1234 {
		t.Errorf("BCD(1234) = %#x", got)
	}
	if got := FromBCD(uint8(0x47)); got != 47 {
		t.Errorf("FromBCD(0x47) = %d", got)
	}
	if got := FromBCD(BCD(uint16(0))); got != 0 {
		t.Errorf("FromBCD(BCD(0)) = %d", got)
	}
}
