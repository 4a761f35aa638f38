package netmd

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"github.com/netmd-tools/mdctl/pkg/devices"
)

// fakeUsb emulates the NetMD control protocol. Every command written to it
// is passed to handler, whose responses are then served through the status
// register.
type fakeUsb struct {
	handler func(cmd []byte) [][]byte

	sent     [][]byte
	requests []uint8
	pending  [][]byte
	polls    int
	busy     int
	bulk     [][]byte
	timeouts []time.Duration
}

func (f *fakeUsb) UseDefaultInterface() error { return nil }

func (f *fakeUsb) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	if rType == devices.RequestTypeOut {
		cmd := bytes.Clone(data)
		f.sent = append(f.sent, cmd)
		f.requests = append(f.requests, request)
		if f.handler != nil {
			f.pending = append(f.pending, f.handler(cmd)...)
		}
		return len(data), nil
	}
	if request == requestPoll {
		f.polls++
		clear(data)
		if len(f.pending) == 0 {
			return 4, nil
		}
		if f.busy > 0 {
			f.busy--
			return 4, nil
		}
		data[0] = 0x01
		data[1] = 0x81
		binary.LittleEndian.PutUint16(data[2:], uint16(len(f.pending[0])))
		return 4, nil
	}
	rsp := f.pending[0]
	f.pending = f.pending[1:]
	return copy(data, rsp), nil
}

func (f *fakeUsb) BulkOut(endpoint int, data []byte) (int, error) {
	f.bulk = append(f.bulk, bytes.Clone(data))
	return len(data), nil
}

func (f *fakeUsb) SetControlTimeout(d time.Duration) error {
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakeUsb) GetStringDescriptor(int) (string, error) { return "Net MD Walkman", nil }
func (f *fakeUsb) Close() error                          { return nil }

// accept echoes a command back with an ACCEPTED response code.
func accept(cmd []byte) []byte {
	rsp := bytes.Clone(cmd)
	rsp[0] = byte(ResponseAccepted)
	return rsp
}

func isDescriptorChange(cmd []byte) bool {
	return len(cmd) > 3 && cmd[1] == 0x18 && cmd[2] == 0x08
}

func newFakeDevice(t *testing.T, handler func(cmd []byte) [][]byte) (*Device, *fakeUsb) {
	t.Helper()
	f := &fakeUsb{handler: handler}
	d, err := New(f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.sleep = func(time.Duration) {}
	return d, f
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// lastNonDescriptor returns the last command sent that was not a
// descriptor state change.
func lastNonDescriptor(f *fakeUsb) []byte {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if !isDescriptorChange(f.sent[i]) {
			return f.sent[i]
		}
	}
	return nil
}
