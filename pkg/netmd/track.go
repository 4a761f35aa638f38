package netmd

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/netmd-tools/mdctl/pkg/query"
)

// Encoding is the on-disc format of a track.
type Encoding uint8

const (
	EncodingSP  Encoding = 0x90
	EncodingLP2 Encoding = 0x92
	EncodingLP4 Encoding = 0x93
)

// Name returns the display name of a known encoding.
func (e Encoding) Name() (string, bool) {
	switch e {
	case EncodingSP:
		return "SP", true
	case EncodingLP2:
		return "LP2", true
	case EncodingLP4:
		return "LP4", true
	}
	return "", false
}

func (e Encoding) String() string {
	if n, ok := e.Name(); ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", uint8(e))
}

type Channels uint8

const (
	ChannelsStereo Channels = 0x00
	ChannelsMono   Channels = 0x01
)

func (c Channels) String() string {
	switch c {
	case ChannelsStereo:
		return "stereo"
	case ChannelsMono:
		return "mono"
	}
	return "UNKNOWN"
}

// Protection is the copy protection flag of a track.
type Protection uint8

const (
	Unprotected Protection = 0x00
	Protected   Protection = 0x03
)

// Name returns the display name of a known protection flag.
func (p Protection) Name() (string, bool) {
	switch p {
	case Unprotected:
		return "UnPROT", true
	case Protected:
		return "TrPROT", true
	}
	return "", false
}

func (p Protection) String() string {
	if n, ok := p.Name(); ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", uint8(p))
}

// TrackTime is the duration of a track as reported by the device.
type TrackTime struct {
	Minute, Second, Tenth uint8
}

func (l TrackTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", l.Minute, l.Second, l.Tenth)
}

// Track numbers used in this file are zero-based.

func (d *Device) trackTitle(track uint16) ([]byte, error) {
	rsp, err := d.Command("00 1806 02201802 %>w 3000 0a00 ff00 00000000", query.Word(track))
	if err != nil {
		return nil, fmt.Errorf("requesting title of track %d: %w", track, err)
	}
	if len(rsp) < 25 {
		return nil, fmt.Errorf("%w: title of track %d", ErrResponseTooShort, track)
	}
	return rsp[25:], nil
}

// TrackTitle returns the title of a track.
func (d *Device) TrackTitle(track uint16) (string, error) {
	raw, err := d.trackTitle(track)
	if err != nil {
		return "", err
	}
	return d.decodeTitle(raw), nil
}

// SetTrackTitle renames a track. Callers usually bracket this with CacheTOC
// and SyncTOC.
func (d *Device) SetTrackTitle(track uint16, title string) error {
	oldSize := 0
	if old, err := d.trackTitle(track); err != nil {
		glog.V(1).Infof("No previous title for track %d: %v", track, err)
	} else {
		oldSize = len(old)
	}
	data := d.encodeTitle(title)

	d.handshake(AudioUTOC1TD, DescriptorClose)
	d.handshake(AudioUTOC1TD, DescriptorOpenWrite)
	_, err := d.Command("00 1807 02201802 %>w 3000 0a00 5000 %>w 0000 %>w %*",
		query.Word(track), query.Word(uint16(len(data))), query.Word(uint16(oldSize)), query.Bytes(data))
	if err != nil {
		return fmt.Errorf("setting title of track %d: %w", track, err)
	}
	return nil
}

// TrackTime returns the duration of a track.
func (d *Device) TrackTime(track uint16) (TrackTime, error) {
	d.handshake(AudioContentsTD, DescriptorOpenRead)
	rsp, err := d.Command("00 1806 02201001 %>w 3000 0100 ff00 00000000", query.Word(track))
	if err != nil {
		return TrackTime{}, fmt.Errorf("requesting length of track %d: %w", track, err)
	}
	if len(rsp) < 31 {
		return TrackTime{}, fmt.Errorf("%w: length of track %d", ErrResponseTooShort, track)
	}
	return TrackTime{
		Minute: query.FromBCD(rsp[28]),
		Second: query.FromBCD(rsp[29]),
		Tenth:  query.FromBCD(rsp[30]),
	}, nil
}

// TrackFlags returns the protection flag of a track.
func (d *Device) TrackFlags(track uint16) (Protection, error) {
	rsp, err := d.Command("00 1806 01201001 %>w ff00 0001 0008", query.Word(track))
	if err != nil {
		return 0, fmt.Errorf("requesting flags of track %d: %w", track, err)
	}
	return Protection(rsp[len(rsp)-1]), nil
}

// TrackBitrate returns the on-disc encoding and channel layout of a track.
func (d *Device) TrackBitrate(track uint16) (Encoding, Channels, error) {
	// Many units report garbage when asked right after a previous command.
	d.sleep(5 * time.Millisecond)
	rsp, err := d.Command("00 1806 02201001 %>w 3080 0700 ff00 00000000", query.Word(track))
	if err != nil {
		return 0, 0, fmt.Errorf("requesting encoding of track %d: %w", track, err)
	}
	if len(rsp) < 29 {
		glog.V(1).Infof("Short encoding response for track %d: %x", track, rsp)
		return 0, 0, nil
	}
	return Encoding(rsp[27]), Channels(rsp[28]), nil
}

// MoveTrack moves a track to a new position.
func (d *Device) MoveTrack(from, to uint16) error {
	d.handshake(AudioContentsTD, DescriptorClose)
	if _, err := d.Command("00 1843 ff00 00 201001 %>w 201001 %>w", query.Word(from), query.Word(to)); err != nil {
		return fmt.Errorf("moving track %d to %d: %w", from, to, err)
	}
	return nil
}

// DeleteTrack erases a single track. Follow with WaitForSync.
func (d *Device) DeleteTrack(track uint16) error {
	if _, err := d.Command("00 1840 ff01 00 201001 %>w", query.Word(track)); err != nil {
		return fmt.Errorf("deleting track %d: %w", track, err)
	}
	return nil
}
