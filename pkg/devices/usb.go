package devices

import (
	"errors"
	"time"
)

// Usb describes the USB primitives needed to talk to a NetMD unit.
type Usb interface {
	// UseDefaultInterface claims the default interface of the device, so
	// that the bulk endpoint can be used.
	UseDefaultInterface() error

	// Control sends a control request to the device.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)

	// BulkOut writes data to the given OUT endpoint. Only valid after
	// UseDefaultInterface.
	BulkOut(endpoint int, data []byte) (int, error)

	SetControlTimeout(time.Duration) error

	GetStringDescriptor(descIndex int) (string, error)

	// Close disposes of this device. No other functions may be called on the
	// interface afterwards.
	Close() error
}

// Control request types used by the NetMD protocol.
const (
	// RequestTypeOut is host-to-device, vendor, interface recipient.
	RequestTypeOut uint8 = 0x41
	// RequestTypeIn is device-to-host, vendor, interface recipient.
	RequestTypeIn uint8 = 0xc1
)

// BulkOutEndpoint carries encrypted audio during downloads.
const BulkOutEndpoint = 0x02

var UsbTimeoutError = errors.New("USB timeout error")
