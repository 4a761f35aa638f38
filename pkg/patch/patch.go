// Package patch manipulates the RAM patch unit of Sony NetMD firmware, as
// needed to upload pre-encoded SP audio.
//
// The patch unit has MaxSlots slots. Each redirects one 4-byte word of
// firmware to a replacement value while enabled. Slots are only writable
// while the device is in factory mode.
package patch

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/netmd-tools/mdctl/pkg/netmd"
	"github.com/netmd-tools/mdctl/pkg/query"
)

const (
	MaxSlots = 8

	peripheralBase uint32 = 0x03802000
	controlAddress        = peripheralBase + MaxSlots*0x10
)

var (
	ErrUnsupportedDevice = errors.New("device does not support patching")
	ErrNoFreeSlot        = errors.New("no free patch slot")
)

// Device is the subset of a NetMD device needed for patching.
type Device interface {
	Exchange(cmd []byte) ([]byte, error)
	SetFactoryMode(enabled bool)
	ChangeDescriptorState(desc netmd.Descriptor, action netmd.DescriptorAction) error
}

type memoryState uint8

const (
	memoryClose memoryState = 0x0
	memoryRead  memoryState = 0x1
	memoryWrite memoryState = 0x2
)

// Session tracks the patch slots of one device. A Session must not outlive
// the device handle it was created for.
type Session struct {
	dev   Device
	slots [MaxSlots]Purpose
}

func NewSession(dev Device) *Session {
	return &Session{dev: dev}
}

// Slots returns the purpose of every patch slot.
func (s *Session) Slots() [MaxSlots]Purpose {
	return s.slots
}

func (s *Session) allocate(p Purpose) (int, error) {
	for i, used := range s.slots {
		if used == Unused {
			s.slots[i] = p
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w for %s", ErrNoFreeSlot, p)
}

// Checksum is the CRC used by memory write commands.
func Checksum(data []byte) uint16 {
	var crc uint32
	temp := uint32(len(data))
	for _, b := range data {
		temp = (temp & 0xffff0000) | uint32(b)
		crc ^= temp
		for j := 0; j < 16; j++ {
			top := crc & 0x8000
			crc <<= 1
			if top != 0 {
				crc ^= 0x1021
			}
		}
	}
	return uint16(crc & 0xffff)
}

func (s *Session) command(template string, args ...query.Value) ([]byte, error) {
	cmd, err := query.Format(template, args...)
	if err != nil {
		return nil, err
	}
	return s.dev.Exchange(cmd)
}

func (s *Session) memoryState(addr uint32, size int, state memoryState) error {
	_, err := s.command("00 1820 ff 00 %<d %b %b 00", query.Dword(addr), query.Byte(uint8(size)), query.Byte(uint8(state)))
	return err
}

// ReadMemory reads size bytes of device memory.
func (s *Session) ReadMemory(addr uint32, size int) ([]byte, error) {
	if err := s.memoryState(addr, size, memoryRead); err != nil {
		return nil, fmt.Errorf("opening %#08x for read: %w", addr, err)
	}
	defer func() {
		if err := s.memoryState(addr, size, memoryClose); err != nil {
			glog.Warningf("Closing %#08x: %v", addr, err)
		}
	}()

	rsp, err := s.command("00 1821 ff 00 %<d %b", query.Dword(addr), query.Byte(uint8(size)))
	if err != nil {
		return nil, fmt.Errorf("reading %#08x: %w", addr, err)
	}
	vals, err := query.Scan(rsp, "%? 1821 00 %? %?%?%?%? %? %?%? %*")
	if err != nil {
		return nil, fmt.Errorf("%w: reading %#08x: %w", netmd.ErrResponseUnexpected, addr, err)
	}
	data := vals[0].Data
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: reading %#08x", netmd.ErrResponseTooShort, addr)
	}
	// The trailing checksum is not verified.
	return data[:len(data)-2], nil
}

// WriteMemory writes data to device memory.
func (s *Session) WriteMemory(addr uint32, data []byte) error {
	if err := s.memoryState(addr, len(data), memoryWrite); err != nil {
		return fmt.Errorf("opening %#08x for write: %w", addr, err)
	}
	_, err := s.command("00 1822 ff 00 %<d %b 0000 %* %<w",
		query.Dword(addr), query.Byte(uint8(len(data))), query.Bytes(data), query.Word(Checksum(data)))
	if cerr := s.memoryState(addr, len(data), memoryClose); cerr != nil {
		glog.Warningf("Closing %#08x: %v", addr, cerr)
	}
	if err != nil {
		return fmt.Errorf("writing %#08x: %w", addr, err)
	}
	return nil
}

// DeviceCode identifies the firmware running on the device. The code is
// returned even if the firmware is not one of the known generations.
func (s *Session) DeviceCode() (string, Firmware, error) {
	rsp, err := s.dev.Exchange([]byte{0x00, 0x18, 0x12, 0xff})
	if err != nil {
		return "", FirmwareUnknown, fmt.Errorf("requesting device code: %w", err)
	}
	if len(rsp) < 8 {
		return "", FirmwareUnknown, fmt.Errorf("%w: device code", netmd.ErrResponseTooShort)
	}
	chip, hwid, version := rsp[4], rsp[5], rsp[7]
	if chip == 0xff && hwid == 0xff && version == 0xff {
		return "", FirmwareUnknown, nil
	}

	var code string
	switch chip {
	case 0x20:
		code = "R"
	case 0x21:
		code = "S"
	case 0x24:
		code = "Hi"
	default:
		code = fmt.Sprintf("0x%02X", chip)
	}
	code += fmt.Sprintf("%d.%d00", version>>4, version&0x0f)
	glog.V(1).Infof("Device code: %s (hwid %#02x)", code, hwid)
	return code, firmwareCodes[code], nil
}

func slotBase(slot int) uint32 {
	return peripheralBase + uint32(slot)*0x10
}

// control writes a sequence of single bytes to the patch control register.
func (s *Session) control(values ...byte) error {
	for _, v := range values {
		if err := s.WriteMemory(controlAddress, []byte{v}); err != nil {
			return fmt.Errorf("patch control: %w", err)
		}
	}
	return nil
}

// modifySlot applies fn to the first byte of a slot's control word.
func (s *Session) modifySlot(slot int, fn func(b byte) byte) error {
	base := slotBase(slot)
	word, err := s.ReadMemory(base, 4)
	if err != nil {
		return err
	}
	if len(word) == 0 {
		return fmt.Errorf("%w: slot %d control word", netmd.ErrResponseTooShort, slot)
	}
	word[0] = fn(word[0])
	return s.WriteMemory(base, word)
}

// Patch programs a slot to replace the word at address with payload. The
// device must be in factory mode.
func (s *Session) Patch(slot int, address uint32, payload [4]byte) error {
	if slot < 0 || slot >= MaxSlots {
		return fmt.Errorf("invalid patch slot %d", slot)
	}
	glog.V(1).Infof("Patching %#08x with %x in slot %d", address, payload, slot)
	base := slotBase(slot)

	if err := s.control(5, 12); err != nil {
		return err
	}
	if err := s.modifySlot(slot, func(b byte) byte { return b &^ 0x01 }); err != nil {
		return err
	}
	if err := s.modifySlot(slot, func(b byte) byte { return b &^ 0x02 }); err != nil {
		return err
	}
	if err := s.WriteMemory(base+4, binary.LittleEndian.AppendUint32(nil, address)); err != nil {
		return err
	}
	if err := s.WriteMemory(base+8, payload[:]); err != nil {
		return err
	}
	if err := s.modifySlot(slot, func(b byte) byte { return b | 0x01 }); err != nil {
		return err
	}
	return s.control(5, 9)
}

// Unpatch disables and frees every slot used for purpose p.
func (s *Session) Unpatch(p Purpose) error {
	for i, used := range s.slots {
		if used != p {
			continue
		}
		s.slots[i] = Unused
		glog.V(1).Infof("Disabling %s patch in slot %d", p, i)
		if err := s.control(5, 12); err != nil {
			return err
		}
		if err := s.modifySlot(i, func(b byte) byte { return b &^ 0x01 }); err != nil {
			return err
		}
		if err := s.control(5, 9); err != nil {
			return err
		}
	}
	return nil
}

// ReadPatch returns the address and payload programmed into a slot.
func (s *Session) ReadPatch(slot int) (uint32, [4]byte, error) {
	var payload [4]byte
	base := slotBase(slot)
	addr, err := s.ReadMemory(base+4, 4)
	if err != nil {
		return 0, payload, err
	}
	data, err := s.ReadMemory(base+8, 4)
	if err != nil {
		return 0, payload, err
	}
	if len(addr) < 4 || len(data) < 4 {
		return 0, payload, fmt.Errorf("%w: slot %d", netmd.ErrResponseTooShort, slot)
	}
	copy(payload[:], data)
	return binary.LittleEndian.Uint32(addr), payload, nil
}
