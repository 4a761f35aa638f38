package netmd

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/text/encoding/charmap"

	"github.com/netmd-tools/mdctl/pkg/devices"
	"github.com/netmd-tools/mdctl/pkg/query"
)

// ResponseCode is the first byte of every response, following AV/C.
type ResponseCode uint8

const (
	ResponseNotImplemented ResponseCode = 0x08
	ResponseAccepted       ResponseCode = 0x09
	ResponseRejected       ResponseCode = 0x0a
	ResponseInTransition   ResponseCode = 0x0b
	ResponseImplemented    ResponseCode = 0x0c
	ResponseChanged        ResponseCode = 0x0d
	ResponseInterim        ResponseCode = 0x0f
)

func (r ResponseCode) String() string {
	switch r {
	case ResponseNotImplemented:
		return "NOT IMPLEMENTED"
	case ResponseAccepted:
		return "ACCEPTED"
	case ResponseRejected:
		return "REJECTED"
	case ResponseInTransition:
		return "IN TRANSITION"
	case ResponseImplemented:
		return "IMPLEMENTED"
	case ResponseChanged:
		return "CHANGED"
	case ResponseInterim:
		return "INTERIM"
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", uint8(r))
}

const (
	requestPoll    uint8 = 0x01
	requestSend    uint8 = 0x80
	requestFactory uint8 = 0xff

	controlTimeout = 1000 * time.Millisecond
	syncTimeout    = 5000 * time.Millisecond

	recvTries = 30
	syncTries = 5
)

// Status is the 4-byte status register of a NetMD unit.
type Status [4]byte

// Ready returns true if the device has a response pending.
func (s Status) Ready() bool {
	return s[0] != 0
}

// Request is the control request code to use to read the pending response.
func (s Status) Request() uint8 {
	return s[1]
}

// Length is the size of the pending response.
func (s Status) Length() int {
	return int(binary.LittleEndian.Uint16(s[2:4]))
}

func (s Status) idle() bool {
	return s == Status{}
}

// Device is an open NetMD unit. It serializes all command/response
// exchanges: every command is fully answered before the next is sent.
// A Device must not be used from multiple goroutines.
type Device struct {
	usb     devices.Usb
	factory bool
	charset *charmap.Charmap
	sleep   func(time.Duration)
}

// New wraps an already opened USB device.
func New(usb devices.Usb) (*Device, error) {
	if err := usb.SetControlTimeout(controlTimeout); err != nil {
		return nil, fmt.Errorf("setting control timeout: %w", err)
	}
	return &Device{
		usb:     usb,
		charset: charmap.ISO8859_1,
		sleep:   time.Sleep,
	}, nil
}

// Usb returns the underlying USB device.
func (d *Device) Usb() devices.Usb {
	return d.usb
}

// SetFactoryMode switches the request code used for commands. Factory
// commands (memory access) are only accepted in factory mode.
func (d *Device) SetFactoryMode(enabled bool) {
	glog.V(1).Infof("Factory write mode: %v", enabled)
	d.factory = enabled
}

func (d *Device) FactoryMode() bool {
	return d.factory
}

func (d *Device) readStatus() (Status, error) {
	var st Status
	n, err := d.usb.Control(devices.RequestTypeIn, requestPoll, 0, 0, st[:])
	if err != nil {
		return st, &TransportError{Op: "poll", Err: err}
	}
	if n != len(st) {
		return st, fmt.Errorf("%w: poll returned %d bytes", ErrResponseTooShort, n)
	}
	return st, nil
}

// Poll waits until the device signals a pending response, trying at most
// tries times. The first attempt is immediate, the next ten are spaced by
// 5ms, and the rest by one second.
func (d *Device) Poll(tries int) (Status, error) {
	var st Status
	for i := 0; i < tries; i++ {
		switch {
		case i == 0:
		case i <= 10:
			d.sleep(5 * time.Millisecond)
		default:
			d.sleep(time.Second)
		}

		var err error
		st, err = d.readStatus()
		if err != nil {
			return st, err
		}
		if st.Ready() {
			return st, nil
		}
	}
	return st, ErrTimeout
}

// send does not poll for a stale pending response first. Callers read every
// reply before issuing the next command.
func (d *Device) send(cmd []byte) error {
	req := requestSend
	if d.factory {
		req = requestFactory
	}
	glog.V(2).Infof("-> %x", cmd)
	n, err := d.usb.Control(devices.RequestTypeOut, req, 0, 0, cmd)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if n != len(cmd) {
		return &TransportError{Op: "send", Err: fmt.Errorf("short write, %d of %d bytes", n, len(cmd))}
	}
	return nil
}

func (d *Device) receive() ([]byte, error) {
	st, err := d.Poll(recvTries)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, st.Length())
	n, err := d.usb.Control(devices.RequestTypeIn, st.Request(), 0, 0, buf)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	buf = buf[:n]
	glog.V(2).Infof("<- %x", buf)
	return buf, nil
}

// Exchange sends a command and returns the device's response. A response
// carrying a negative response code is returned together with a
// *RejectedError.
func (d *Device) Exchange(cmd []byte) ([]byte, error) {
	if err := d.send(cmd); err != nil {
		return nil, err
	}
	rsp, err := d.receive()
	if err != nil {
		return nil, err
	}
	if len(rsp) > 0 && ResponseCode(rsp[0]) == ResponseInterim {
		glog.V(1).Infof("Interim response, re-reading")
		rsp, err = d.receive()
		if err != nil {
			return nil, err
		}
	}
	if len(rsp) == 0 {
		return nil, fmt.Errorf("%w: empty response to %x", ErrResponseTooShort, cmd)
	}
	switch code := ResponseCode(rsp[0]); code {
	case ResponseRejected, ResponseNotImplemented:
		return rsp, &RejectedError{Code: code, Command: cmd}
	}
	return rsp, nil
}

// Submit sends a command without waiting for its response. Commands that
// are answered in several steps are driven with Submit and ReadResponse.
func (d *Device) Submit(cmd []byte) error {
	return d.send(cmd)
}

// ReadResponse reads the next response from the device. Interim responses
// are returned as is.
func (d *Device) ReadResponse() ([]byte, error) {
	rsp, err := d.receive()
	if err != nil {
		return nil, err
	}
	if len(rsp) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrResponseTooShort)
	}
	switch code := ResponseCode(rsp[0]); code {
	case ResponseRejected, ResponseNotImplemented:
		return rsp, &RejectedError{Code: code}
	}
	return rsp, nil
}

// Command formats a query and exchanges it.
func (d *Device) Command(template string, args ...query.Value) ([]byte, error) {
	cmd, err := query.Format(template, args...)
	if err != nil {
		return nil, fmt.Errorf("formatting command: %w", err)
	}
	return d.Exchange(cmd)
}

// WaitForSync blocks until the device reports an idle status register, as
// required after long running operations like erasing tracks. It returns
// false if the device did not settle.
func (d *Device) WaitForSync() bool {
	if err := d.usb.SetControlTimeout(syncTimeout); err != nil {
		glog.Warningf("Could not raise control timeout: %v", err)
	}
	defer d.usb.SetControlTimeout(controlTimeout)

	for i := 0; i < syncTries; i++ {
		if i > 0 {
			d.sleep(100 * time.Millisecond)
		}
		st, err := d.readStatus()
		if err != nil {
			glog.V(1).Infof("Sync poll failed: %v", err)
			continue
		}
		if st.idle() {
			return true
		}
	}
	glog.Warningf("Device did not sync after %d tries", syncTries)
	return false
}

// BulkOut streams data to the download endpoint.
func (d *Device) BulkOut(data []byte) error {
	n, err := d.usb.BulkOut(devices.BulkOutEndpoint, data)
	if err != nil {
		return &TransportError{Op: "bulk", Err: err}
	}
	if n != len(data) {
		return &TransportError{Op: "bulk", Err: fmt.Errorf("short write, %d of %d bytes", n, len(data))}
	}
	return nil
}

// DeviceName returns the USB product string of the device.
func (d *Device) DeviceName() (string, error) {
	name, err := d.usb.GetStringDescriptor(2)
	if err != nil {
		return "", &TransportError{Op: "string descriptor", Err: err}
	}
	return name, nil
}
