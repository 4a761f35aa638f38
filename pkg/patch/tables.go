package patch

import (
	"github.com/netmd-tools/mdctl/pkg/uasm"
)

// Firmware is a known generation of Sony NetMD firmware.
type Firmware int

const (
	FirmwareUnknown Firmware = iota
	FirmwareS1200
	FirmwareS1300
	FirmwareS1400
	FirmwareS1500
	FirmwareS1600
)

var firmwareCodes = map[string]Firmware{
	"S1.200": FirmwareS1200,
	"S1.300": FirmwareS1300,
	"S1.400": FirmwareS1400,
	"S1.500": FirmwareS1500,
	"S1.600": FirmwareS1600,
}

func (f Firmware) String() string {
	for code, fw := range firmwareCodes {
		if fw == f {
			return code
		}
	}
	return "UNKNOWN"
}

// Purpose names what a patch slot is used for.
type Purpose int

const (
	Unused Purpose = iota
	DevType
	Patch0A
	Patch0B
	Patch0
	Prep
	Common1
	Common2
	TrackType
	Safety
)

func (p Purpose) String() string {
	switch p {
	case Unused:
		return "unused"
	case DevType:
		return "device type"
	case Patch0A:
		return "patch 0 (A)"
	case Patch0B:
		return "patch 0 (B)"
	case Patch0:
		return "patch 0"
	case Prep:
		return "prep"
	case Common1:
		return "common 1"
	case Common2:
		return "common 2"
	case TrackType:
		return "track type"
	case Safety:
		return "safety"
	}
	return "UNKNOWN"
}

// addresses holds the firmware locations patched (or, for DevType, read)
// per purpose.
var addresses = map[Purpose]map[Firmware]uint32{
	DevType: {
		FirmwareS1600: 0x02003fcf,
		FirmwareS1500: 0x02003fc7,
		FirmwareS1400: 0x03000220,
		FirmwareS1300: 0x02003e97,
	},
	Patch0A: {
		FirmwareS1600: 0x0007f408,
		FirmwareS1500: 0x0007e988,
		FirmwareS1400: 0x0007e2c8,
		FirmwareS1300: 0x0007aa00,
	},
	Patch0B: {
		FirmwareS1600: 0x0007efec,
		FirmwareS1500: 0x0007e56c,
		FirmwareS1400: 0x0007deac,
		FirmwareS1300: 0x0007a5e4,
		FirmwareS1200: 0x00078dcc,
	},
	Prep: {
		FirmwareS1600: 0x00077c04,
		FirmwareS1500: 0x0007720c,
		FirmwareS1400: 0x00076b38,
		FirmwareS1300: 0x00073488,
		FirmwareS1200: 0x00071e5c,
	},
	Common1: {
		FirmwareS1600: 0x0007f4e8,
		FirmwareS1500: 0x0007ea68,
		FirmwareS1400: 0x0007e3a8,
		FirmwareS1300: 0x0007aae0,
		FirmwareS1200: 0x00078eac,
	},
	Common2: {
		FirmwareS1600: 0x0007f4ec,
		FirmwareS1500: 0x0007ea6c,
		FirmwareS1400: 0x0007e3ac,
		FirmwareS1300: 0x0007aae4,
		FirmwareS1200: 0x00078eb0,
	},
	TrackType: {
		FirmwareS1600: 0x000852b0,
		FirmwareS1500: 0x00084820,
		FirmwareS1400: 0x00084160,
		FirmwareS1300: 0x00080798,
		FirmwareS1200: 0x0007ea9c,
	},
	// Anti-brick patch.
	Safety: {
		FirmwareS1600: 0x000000c4,
		FirmwareS1500: 0x000000c4,
		FirmwareS1400: 0x000000c4,
		FirmwareS1300: 0x000000c4,
	},
}

type payloadEntry struct {
	firmware []Firmware
	data     [4]byte
}

var allFirmware = []Firmware{FirmwareS1200, FirmwareS1300, FirmwareS1400, FirmwareS1500, FirmwareS1600}

// safetyTarget is where the safety patch at 0xc4 branches to.
const safetyTarget = 0x3c

// Code payloads don't depend on their address, except for the safety branch.
var payloads = map[Purpose]payloadEntry{
	Patch0:    {allFirmware, uasm.Word(0, uasm.Mov{Dest: uasm.R0, Src: uasm.R0})},
	Prep:      {allFirmware, [4]byte{0x0d, 0x31, 0x01, 0x60}},
	Common1:   {allFirmware, uasm.Word(0, uasm.Orr{Cond: uasm.EQ, Dest: uasm.R8, Src: uasm.R0, Compl: uasm.Immediate(0x14)})},
	Common2:   {allFirmware, uasm.Word(0, uasm.Orr{Cond: uasm.EQ, Dest: uasm.R9, Src: uasm.R0, Compl: uasm.Immediate(0x14)})},
	TrackType: {allFirmware, [4]byte{0x06, 0x02, 0x00, 0x04}},
	Safety:    {[]Firmware{FirmwareS1400, FirmwareS1500, FirmwareS1600}, uasm.Word(0xc4, uasm.B{Dest: uasm.Absolute(safetyTarget)})},
}

// Address returns the firmware address used for a purpose.
func Address(fw Firmware, p Purpose) (uint32, bool) {
	addr, ok := addresses[p][fw]
	return addr, ok && addr != 0
}

// Payload returns the patch data for a purpose.
func Payload(fw Firmware, p Purpose) ([4]byte, bool) {
	e, ok := payloads[p]
	if !ok {
		return [4]byte{}, false
	}
	for _, f := range e.firmware {
		if f == fw {
			return e.data, true
		}
	}
	return [4]byte{}, false
}
