package netmd

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"

	"github.com/netmd-tools/mdctl/pkg/query"
)

// RawHeader reads the disc title text. Besides the disc title, it carries
// the group layout of the disc, see package discheader.
func (d *Device) RawHeader() (string, error) {
	raw, err := d.rawHeader()
	if err != nil {
		return "", err
	}
	return d.decodeTitle(raw), nil
}

func (d *Device) rawHeader() ([]byte, error) {
	d.handshake(DiscTitleTD, DescriptorOpenRead)

	var out []byte
	total, read := 1, 0
	first := true
	for read < total {
		remaining := 0
		if !first {
			remaining = total - read
		}
		rsp, err := d.Command("00 1806 02201801 0000 3000 0a00 ff00 %>w %>w", query.Word(uint16(remaining)), query.Word(uint16(read)))
		if err != nil {
			return nil, fmt.Errorf("reading disc title: %w", err)
		}

		offset := 19
		if first {
			offset = 25
		}
		if len(rsp) < offset {
			return nil, fmt.Errorf("%w: disc title chunk of %d bytes", ErrResponseTooShort, len(rsp))
		}
		size := int(binary.BigEndian.Uint16(rsp[15:17]))
		if first {
			total = int(binary.BigEndian.Uint16(rsp[23:25]))
			size -= 6
		}
		if size < 0 || offset+size > len(rsp) {
			return nil, fmt.Errorf("%w: disc title chunk claims %d bytes, got %d", ErrResponseTooShort, size, len(rsp)-offset)
		}
		if size == 0 && read < total {
			return nil, fmt.Errorf("%w: empty disc title chunk at %d/%d", ErrResponseUnexpected, read, total)
		}

		out = append(out, rsp[offset:offset+size]...)
		read += size
		first = false
	}
	if len(out) > total {
		out = out[:total]
	}
	glog.V(1).Infof("Disc title: %q", out)
	return out, nil
}

// WriteRawHeader replaces the disc title text.
func (d *Device) WriteRawHeader(header string) error {
	oldSize := 0
	if old, err := d.rawHeader(); err != nil {
		glog.Warningf("Could not read old disc title, assuming empty: %v", err)
	} else {
		oldSize = len(old)
	}
	data := d.encodeTitle(header)

	d.handshake(DiscTitleTD, DescriptorOpenRead)
	d.handshake(DiscTitleTD, DescriptorClose)
	d.handshake(DiscTitleTD, DescriptorOpenWrite)
	_, err := d.Command("00 1807 02201801 0000 3000 0a00 5000 %>w 0000 %>w %*",
		query.Word(uint16(len(data))), query.Word(uint16(oldSize)), query.Bytes(data))
	d.handshake(DiscTitleTD, DescriptorClose)
	if err != nil {
		return fmt.Errorf("writing disc title: %w", err)
	}
	return nil
}

// TrackCount returns the number of tracks on the disc.
func (d *Device) TrackCount() (uint16, error) {
	rsp, err := d.Command("00 1806 02101001 3000 1000 ff00 00000000")
	if err != nil {
		return 0, fmt.Errorf("requesting track count: %w", err)
	}
	return uint16(rsp[len(rsp)-1]), nil
}

// EraseDisc removes all tracks and titles from the disc.
func (d *Device) EraseDisc() error {
	if _, err := d.Command("00 1840 ff 0000"); err != nil {
		return fmt.Errorf("erasing disc: %w", err)
	}
	return nil
}

// CacheTOC asks the device to hold TOC changes in memory until SyncTOC.
func (d *Device) CacheTOC() error {
	return d.ChangeDescriptorState(AudioUTOC1TD, DescriptorOpenWrite)
}

// SyncTOC writes cached TOC changes to the disc.
func (d *Device) SyncTOC() error {
	return d.ChangeDescriptorState(AudioUTOC1TD, DescriptorClose)
}

// Acquire reserves the device for the host. Some units require it before
// downloads, others reject it.
func (d *Device) Acquire() error {
	rsp, err := d.Command("00 ff010c ffffffffffffffffffffffff")
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	if ResponseCode(rsp[0]) != ResponseAccepted {
		return fmt.Errorf("acquire: %w: %s", ErrResponseUnexpected, ResponseCode(rsp[0]))
	}
	return nil
}

func (d *Device) Release() error {
	if _, err := d.Command("00 ff0100 ffffffffffffffffffffffff"); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}
