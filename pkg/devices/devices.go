package devices

import (
	"fmt"

	"github.com/google/gousb"
)

type Vendor string

const (
	Sony      Vendor = "sony"
	Sharp     Vendor = "sharp"
	Panasonic Vendor = "panasonic"
)

func (v Vendor) String() string {
	switch v {
	case Sony:
		return "Sony"
	case Sharp:
		return "Sharp"
	case Panasonic:
		return "Panasonic"
	}
	return "UNKNOWN"
}

func (v Vendor) VID() gousb.ID {
	switch v {
	case Sony:
		return 0x054c
	case Sharp:
		return 0x04dd
	case Panasonic:
		return 0x0004
	}
	return 0
}

// Description is a known NetMD recorder.
type Description struct {
	Vendor Vendor
	PID    gousb.ID
	Model  string
	// OnTheFly is set on units that can encode PCM to LP2/LP4 while
	// recording a download.
	OnTheFly bool
}

func (d Description) VID() gousb.ID {
	return d.Vendor.VID()
}

func (d Description) String() string {
	return fmt.Sprintf("%s (%s:%s)", d.Model, d.VID(), d.PID)
}

var Descriptions = []Description{
	{Vendor: Sony, PID: 0x0034, Model: "Sony PCLK-XX"},
	{Vendor: Sony, PID: 0x0036, Model: "Sony (unknown model)"},
	{Vendor: Sony, PID: 0x006f, Model: "Sony NW-E7"},
	{Vendor: Sony, PID: 0x0075, Model: "Sony MZ-N1"},
	{Vendor: Sony, PID: 0x007c, Model: "Sony (unknown model)"},
	{Vendor: Sony, PID: 0x0080, Model: "Sony LAM-1"},
	{Vendor: Sony, PID: 0x0081, Model: "Sony MDS-JE780/JB980", OnTheFly: true},
	{Vendor: Sony, PID: 0x0084, Model: "Sony MZ-N505"},
	{Vendor: Sony, PID: 0x0085, Model: "Sony MZ-S1"},
	{Vendor: Sony, PID: 0x0086, Model: "Sony MZ-N707"},
	{Vendor: Sony, PID: 0x008e, Model: "Sony CMT-C7NT"},
	{Vendor: Sony, PID: 0x0097, Model: "Sony PCGA-MDN1"},
	{Vendor: Sony, PID: 0x00ad, Model: "Sony CMT-L7HD"},
	{Vendor: Sony, PID: 0x00c6, Model: "Sony MZ-N10"},
	{Vendor: Sony, PID: 0x00c7, Model: "Sony MZ-N910"},
	{Vendor: Sony, PID: 0x00c8, Model: "Sony MZ-N710/NE810/NF810"},
	{Vendor: Sony, PID: 0x00c9, Model: "Sony MZ-N510/NF610"},
	{Vendor: Sony, PID: 0x00ca, Model: "Sony MZ-NE410/DN430/NF520"},
	{Vendor: Sony, PID: 0x00eb, Model: "Sony MZ-NE810/NE910"},
	{Vendor: Sony, PID: 0x00e7, Model: "Sony CMT-M333NT/M373NT"},
	{Vendor: Sony, PID: 0x0101, Model: "Sony LAM-10"},
	{Vendor: Sony, PID: 0x0113, Model: "Aiwa AM-NX1"},
	{Vendor: Sony, PID: 0x0119, Model: "Sony CMT-SE9"},
	{Vendor: Sony, PID: 0x013f, Model: "Sony MDS-S500"},
	{Vendor: Sony, PID: 0x014c, Model: "Aiwa AM-NX9"},
	{Vendor: Sony, PID: 0x017e, Model: "Sony MZ-NH1"},
	{Vendor: Sony, PID: 0x0180, Model: "Sony MZ-NH3D"},
	{Vendor: Sony, PID: 0x0182, Model: "Sony MZ-NH900"},
	{Vendor: Sony, PID: 0x0184, Model: "Sony MZ-NH700/800"},
	{Vendor: Sony, PID: 0x0186, Model: "Sony MZ-NH600/600D"},
	{Vendor: Sony, PID: 0x0188, Model: "Sony MZ-N920"},
	{Vendor: Sony, PID: 0x018a, Model: "Sony LAM-3"},
	{Vendor: Sony, PID: 0x01e9, Model: "Sony MZ-DH10P"},
	{Vendor: Sony, PID: 0x0219, Model: "Sony MZ-RH10"},
	{Vendor: Sony, PID: 0x021b, Model: "Sony MZ-RH910"},
	{Vendor: Sony, PID: 0x021d, Model: "Sony CMT-AH10"},
	{Vendor: Sony, PID: 0x022c, Model: "Sony CMT-AH10"},
	{Vendor: Sony, PID: 0x023c, Model: "Sony DS-HMD1"},
	{Vendor: Sony, PID: 0x0286, Model: "Sony MZ-RH1"},

	{Vendor: Sharp, PID: 0x7202, Model: "Sharp IM-MT880H/MT899H"},
	{Vendor: Sharp, PID: 0x9013, Model: "Sharp IM-DR400/DR410", OnTheFly: true},
	{Vendor: Sharp, PID: 0x9014, Model: "Sharp IM-DR80/DR420/DR580 or Kenwood DMC-S9NET"},

	{Vendor: Panasonic, PID: 0x23b3, Model: "Panasonic SJ-MR250"},
}

// Lookup finds a known device by its USB IDs.
func Lookup(vid, pid gousb.ID) (*Description, bool) {
	for i := range Descriptions {
		d := &Descriptions[i]
		if d.VID() == vid && d.PID == pid {
			return d, true
		}
	}
	return nil, false
}
