package patch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/netmd-tools/mdctl/pkg/netmd"
)

type memWrite struct {
	addr uint32
	data []byte
}

// fakeDevice emulates the memory access commands of a NetMD unit in factory
// mode, backed by a sparse memory map.
type fakeDevice struct {
	t       *testing.T
	mem     map[uint32]byte
	factory bool
	code    []byte

	open   map[uint32]memoryState
	writes []memWrite
	reads  []uint32
}

func newFakeDevice(t *testing.T, chip, version byte) *fakeDevice {
	return &fakeDevice{
		t:    t,
		mem:  make(map[uint32]byte),
		open: make(map[uint32]memoryState),
		code: []byte{0x09, 0x18, 0x12, 0xff, chip, 0x00, 0x00, version},
	}
}

func (f *fakeDevice) SetFactoryMode(enabled bool) { f.factory = enabled }

func (f *fakeDevice) ChangeDescriptorState(netmd.Descriptor, netmd.DescriptorAction) error {
	return nil
}

func (f *fakeDevice) load(addr uint32, data []byte) {
	for i, b := range data {
		f.mem[addr+uint32(i)] = b
	}
}

func (f *fakeDevice) slice(addr uint32, n int) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = f.mem[addr+uint32(i)]
	}
	return res
}

func (f *fakeDevice) reject(cmd []byte) ([]byte, error) {
	rsp := bytes.Clone(cmd)
	rsp[0] = byte(netmd.ResponseRejected)
	return rsp, &netmd.RejectedError{Code: netmd.ResponseRejected, Command: cmd}
}

func (f *fakeDevice) Exchange(cmd []byte) ([]byte, error) {
	accept := bytes.Clone(cmd)
	accept[0] = byte(netmd.ResponseAccepted)
	if len(cmd) < 4 || cmd[1] != 0x18 {
		return accept, nil
	}
	switch cmd[2] {
	case 0x12:
		return f.code, nil
	case 0x20, 0x21, 0x22:
	default:
		return accept, nil
	}
	if !f.factory {
		return f.reject(cmd)
	}
	addr := binary.LittleEndian.Uint32(cmd[5:9])
	size := int(cmd[9])

	switch cmd[2] {
	case 0x20:
		f.open[addr] = memoryState(cmd[10])
		return accept, nil
	case 0x21:
		if f.open[addr] != memoryRead {
			f.t.Errorf("read of %#08x while not open for read", addr)
		}
		f.reads = append(f.reads, addr)
		data := f.slice(addr, size)
		rsp := []byte{0x09, 0x18, 0x21, 0x00, 0xff}
		rsp = binary.LittleEndian.AppendUint32(rsp, addr)
		rsp = append(rsp, byte(size), 0x00, 0x00)
		rsp = append(rsp, data...)
		return binary.LittleEndian.AppendUint16(rsp, Checksum(data)), nil
	default:
		if f.open[addr] != memoryWrite {
			f.t.Errorf("write of %#08x while not open for write", addr)
		}
		data := cmd[12 : 12+size]
		if got, want := binary.LittleEndian.Uint16(cmd[12+size:]), Checksum(data); got != want {
			f.t.Errorf("write of %#08x: checksum %#04x, wanted %#04x", addr, got, want)
		}
		f.writes = append(f.writes, memWrite{addr, bytes.Clone(data)})
		f.load(addr, data)
		return accept, nil
	}
}

func TestChecksum(t *testing.T) {
	for _, tc := range []struct {
		data []byte
		want uint16
	}{
		{nil, 0x0000},
		{[]byte{0x05}, 0x50a5},
		{[]byte{0xdc, 0xff, 0xff, 0xea}, 0xdaad},
		{[]byte{0x00, 0x00, 0xa0, 0xe1}, 0x5093},
	} {
		if got := Checksum(tc.data); got != tc.want {
			t.Errorf("Checksum(%x) = %#04x, wanted %#04x", tc.data, got, tc.want)
		}
	}
}

func TestDeviceCode(t *testing.T) {
	for _, tc := range []struct {
		chip, version byte
		code          string
		fw            Firmware
	}{
		{0x21, 0x16, "S1.600", FirmwareS1600},
		{0x21, 0x12, "S1.200", FirmwareS1200},
		{0x20, 0x14, "R1.400", FirmwareUnknown},
		{0x24, 0x15, "Hi1.500", FirmwareUnknown},
		{0x33, 0x21, "0x332.100", FirmwareUnknown},
	} {
		s := NewSession(newFakeDevice(t, tc.chip, tc.version))
		code, fw, err := s.DeviceCode()
		if err != nil {
			t.Fatalf("DeviceCode: %v", err)
		}
		if code != tc.code || fw != tc.fw {
			t.Errorf("chip %#02x version %#02x: got %q/%s, wanted %q/%s", tc.chip, tc.version, code, fw, tc.code, tc.fw)
		}
	}
}

func TestMemoryRequiresFactoryMode(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x16)
	s := NewSession(f)
	if _, err := s.ReadMemory(0x1000, 4); !errors.Is(err, netmd.ErrDeviceRejected) {
		t.Errorf("read outside factory mode: %v", err)
	}
}

func TestReadWriteMemory(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x16)
	f.factory = true
	s := NewSession(f)
	if err := s.WriteMemory(0x2000, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	got, err := s.ReadMemory(0x2000, 3)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("read back %x", got)
	}
	if f.open[0x2000] != memoryClose {
		t.Errorf("memory left open")
	}
}

func TestPatchSequence(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x16)
	f.factory = true
	f.load(slotBase(2), []byte{0x03, 0xaa, 0xbb, 0xcc})
	s := NewSession(f)

	if err := s.Patch(2, 0x0007f408, [4]byte{0x00, 0x00, 0xa0, 0xe1}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	base := slotBase(2)
	want := []memWrite{
		{controlAddress, []byte{5}},
		{controlAddress, []byte{12}},
		{base, []byte{0x02, 0xaa, 0xbb, 0xcc}},
		{base, []byte{0x00, 0xaa, 0xbb, 0xcc}},
		{base + 4, []byte{0x08, 0xf4, 0x07, 0x00}},
		{base + 8, []byte{0x00, 0x00, 0xa0, 0xe1}},
		{base, []byte{0x01, 0xaa, 0xbb, 0xcc}},
		{controlAddress, []byte{5}},
		{controlAddress, []byte{9}},
	}
	if len(f.writes) != len(want) {
		t.Fatalf("got %d writes, wanted %d", len(f.writes), len(want))
	}
	for i := range want {
		if f.writes[i].addr != want[i].addr || !bytes.Equal(f.writes[i].data, want[i].data) {
			t.Errorf("write %d: %#08x <- %x, wanted %#08x <- %x", i, f.writes[i].addr, f.writes[i].data, want[i].addr, want[i].data)
		}
	}

	addr, payload, err := s.ReadPatch(2)
	if err != nil {
		t.Fatalf("ReadPatch: %v", err)
	}
	if addr != 0x0007f408 || payload != [4]byte{0x00, 0x00, 0xa0, 0xe1} {
		t.Errorf("ReadPatch = %#08x %x", addr, payload)
	}
}

func slotPatch(f *fakeDevice, slot int) (uint32, []byte, bool) {
	base := slotBase(slot)
	return binary.LittleEndian.Uint32(f.slice(base+4, 4)), f.slice(base+8, 4), f.mem[base]&1 == 1
}

func TestApplySP(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x16)
	s := NewSession(f)
	if err := s.ApplySP(2); err != nil {
		t.Fatalf("ApplySP: %v", err)
	}
	if f.factory {
		t.Errorf("factory mode left enabled")
	}

	want := []struct {
		purpose Purpose
		addr    uint32
		payload []byte
	}{
		{Safety, 0x000000c4, []byte{0xdc, 0xff, 0xff, 0xea}},
		{Patch0, 0x0007f408, []byte{0x00, 0x00, 0xa0, 0xe1}},
		{Common1, 0x0007f4e8, []byte{0x14, 0x80, 0x80, 0x03}},
		{Common2, 0x0007f4ec, []byte{0x14, 0x90, 0x80, 0x03}},
		{Prep, 0x00077c04, []byte{0x0d, 0x31, 0x01, 0x60}},
		{TrackType, 0x000852b0, []byte{0x06, 0x06, 0x00, 0x04}},
	}
	slots := s.Slots()
	for i, w := range want {
		if slots[i] != w.purpose {
			t.Errorf("slot %d: %s, wanted %s", i, slots[i], w.purpose)
		}
		addr, payload, enabled := slotPatch(f, i)
		if addr != w.addr || !bytes.Equal(payload, w.payload) || !enabled {
			t.Errorf("slot %d: %#08x %x enabled=%v, wanted %#08x %x", i, addr, payload, enabled, w.addr, w.payload)
		}
	}

	if err := s.UndoSP(); err != nil {
		t.Fatalf("UndoSP: %v", err)
	}
	slots = s.Slots()
	if slots[0] != Safety {
		t.Errorf("safety patch released")
	}
	for i := 1; i < len(want); i++ {
		if slots[i] != Unused {
			t.Errorf("slot %d still %s", i, slots[i])
		}
		if _, _, enabled := slotPatch(f, i); enabled {
			t.Errorf("slot %d still enabled", i)
		}
	}
	if _, _, enabled := slotPatch(f, 0); !enabled {
		t.Errorf("safety patch disabled")
	}
}

func TestApplySPVariantBMono(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x14)
	f.load(0x03000220, []byte{1})
	s := NewSession(f)
	if err := s.ApplySP(1); err != nil {
		t.Fatalf("ApplySP: %v", err)
	}
	if addr, _, _ := slotPatch(f, 1); addr != 0x0007deac {
		t.Errorf("main patch at %#08x, wanted variant B", addr)
	}
	if _, payload, _ := slotPatch(f, 5); !bytes.Equal(payload, []byte{0x06, 0x04, 0x00, 0x04}) {
		t.Errorf("track type payload %x, wanted mono", payload)
	}
	if p, _ := Payload(FirmwareS1400, TrackType); p[1] != 0x02 {
		t.Errorf("payload table modified: %x", p)
	}
}

func TestApplySPKeepsExistingSafetyPatch(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x15)
	f.load(slotBase(3)+4, []byte{0xc0, 0xe6, 0x00, 0x00})
	s := NewSession(f)
	if err := s.ApplySP(2); err != nil {
		t.Fatalf("ApplySP: %v", err)
	}
	slots := s.Slots()
	if slots[3] != Safety {
		t.Errorf("developer patch slot not claimed: %v", slots)
	}
	for _, w := range f.writes {
		if w.addr == slotBase(3)+4 || w.addr == slotBase(3)+8 {
			t.Errorf("developer patch slot overwritten")
		}
	}
	if slots[0] != Patch0 || slots[4] != Prep || slots[5] != TrackType {
		t.Errorf("unexpected slot layout %v", slots)
	}
}

func TestApplySPS1200(t *testing.T) {
	f := newFakeDevice(t, 0x21, 0x12)
	s := NewSession(f)
	if err := s.ApplySP(2); err != nil {
		t.Fatalf("ApplySP: %v", err)
	}
	slots := s.Slots()
	if slots[0] != Patch0 {
		t.Errorf("slot 0 is %s, wanted main patch without safety patch", slots[0])
	}
	if addr, _, _ := slotPatch(f, 0); addr != 0x00078dcc {
		t.Errorf("main patch at %#08x", addr)
	}
}

func TestApplySPUnsupported(t *testing.T) {
	f := newFakeDevice(t, 0x20, 0x16)
	s := NewSession(f)
	if err := s.ApplySP(2); !errors.Is(err, ErrUnsupportedDevice) {
		t.Fatalf("got %v, wanted ErrUnsupportedDevice", err)
	}
	if len(f.writes) != 0 {
		t.Errorf("unsupported device was written to: %v", f.writes)
	}
	if s.SupportsSP() {
		t.Errorf("SupportsSP on unknown firmware")
	}
	if f.factory {
		t.Errorf("factory mode left enabled")
	}
	if !NewSession(newFakeDevice(t, 0x21, 0x13)).SupportsSP() {
		t.Errorf("S1.300 not supported")
	}
}

func TestNoFreeSlot(t *testing.T) {
	s := NewSession(newFakeDevice(t, 0x21, 0x16))
	for i := 0; i < MaxSlots; i++ {
		if _, err := s.allocate(Prep); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := s.allocate(Prep); !errors.Is(err, ErrNoFreeSlot) {
		t.Errorf("got %v, wanted ErrNoFreeSlot", err)
	}
}

func TestPayloads(t *testing.T) {
	for _, tc := range []struct {
		p    Purpose
		want []byte
	}{
		{Patch0, []byte{0x00, 0x00, 0xa0, 0xe1}},
		{Common1, []byte{0x14, 0x80, 0x80, 0x03}},
		{Common2, []byte{0x14, 0x90, 0x80, 0x03}},
		{Safety, []byte{0xdc, 0xff, 0xff, 0xea}},
	} {
		got, ok := Payload(FirmwareS1600, tc.p)
		if !ok || !bytes.Equal(got[:], tc.want) {
			t.Errorf("%s: got %x, wanted %x", tc.p, got, tc.want)
		}
	}
	if _, ok := Payload(FirmwareS1200, Safety); ok {
		t.Errorf("safety payload offered for S1.200")
	}
}
