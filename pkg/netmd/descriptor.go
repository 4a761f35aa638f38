package netmd

import (
	"github.com/golang/glog"

	"github.com/netmd-tools/mdctl/pkg/query"
)

// Descriptor is an AV/C disc subunit descriptor. Most reads and writes must
// be bracketed by opening and closing the matching descriptor.
type Descriptor int

const (
	DiscTitleTD Descriptor = iota
	AudioUTOC1TD
	AudioUTOC4TD
	DSITD
	AudioContentsTD
	RootTD
	DiscSubunitIdentifier
	OperatingStatusBlock
)

func (d Descriptor) bytes() []byte {
	switch d {
	case DiscTitleTD:
		return []byte{0x10, 0x18, 0x01}
	case AudioUTOC1TD:
		return []byte{0x10, 0x18, 0x02}
	case AudioUTOC4TD:
		return []byte{0x10, 0x18, 0x03}
	case DSITD:
		return []byte{0x10, 0x18, 0x04}
	case AudioContentsTD:
		return []byte{0x10, 0x10, 0x01}
	case RootTD:
		return []byte{0x10, 0x10, 0x00}
	case DiscSubunitIdentifier:
		return []byte{0x00}
	case OperatingStatusBlock:
		return []byte{0x80, 0x00}
	}
	panic("unknown descriptor")
}

func (d Descriptor) String() string {
	switch d {
	case DiscTitleTD:
		return "disc title"
	case AudioUTOC1TD:
		return "audio UTOC1"
	case AudioUTOC4TD:
		return "audio UTOC4"
	case DSITD:
		return "DSI"
	case AudioContentsTD:
		return "audio contents"
	case RootTD:
		return "root"
	case DiscSubunitIdentifier:
		return "disc subunit identifier"
	case OperatingStatusBlock:
		return "operating status block"
	}
	return "UNKNOWN"
}

type DescriptorAction uint8

const (
	DescriptorClose     DescriptorAction = 0x00
	DescriptorOpenRead  DescriptorAction = 0x01
	DescriptorOpenWrite DescriptorAction = 0x03
)

func (a DescriptorAction) String() string {
	switch a {
	case DescriptorClose:
		return "close"
	case DescriptorOpenRead:
		return "open for read"
	case DescriptorOpenWrite:
		return "open for write"
	}
	return "UNKNOWN"
}

// ChangeDescriptorState opens or closes a descriptor.
func (d *Device) ChangeDescriptorState(desc Descriptor, action DescriptorAction) error {
	_, err := d.Command("00 1808 %* %b 00", query.Bytes(desc.bytes()), query.Byte(uint8(action)))
	return err
}

// handshake changes a descriptor state, ignoring failures. Units differ in
// which of these they require, and some reject the ones they do not.
func (d *Device) handshake(desc Descriptor, action DescriptorAction) {
	if err := d.ChangeDescriptorState(desc, action); err != nil {
		glog.V(1).Infof("Descriptor %s %s: %v", desc, action, err)
	}
}
