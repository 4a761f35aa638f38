package netmd

import (
	"fmt"
	"strings"

	"github.com/netmd-tools/mdctl/pkg/query"
)

// Time is a position on the disc. Frames are 1/512 s.
type Time struct {
	Hour   uint16
	Minute uint8
	Second uint8
	Frame  uint8
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Frame)
}

// Capacity describes disc usage, in the recording mode currently selected on
// the device.
type Capacity struct {
	Recorded  Time
	Total     Time
	Available Time
}

// PlayMode selects single, repeat or shuffle playback.
type PlayMode uint16

const (
	PlayModeSingle  PlayMode = 0x0040
	PlayModeRepeat  PlayMode = 0x0080
	PlayModeShuffle PlayMode = 0x0100
)

var PlayModes = map[string]PlayMode{
	"single":  PlayModeSingle,
	"repeat":  PlayModeRepeat,
	"shuffle": PlayModeShuffle,
}

const (
	playbackPlay        uint8 = 0x75
	playbackPause       uint8 = 0x7d
	playbackFastForward uint8 = 0x39
	playbackRewind      uint8 = 0x49
)

func (d *Device) playback(action uint8) error {
	if _, err := d.Command("00 18c3 ff %b 000000", query.Byte(action)); err != nil {
		return fmt.Errorf("playback control %#02x: %w", action, err)
	}
	return nil
}

func (d *Device) Play() error        { return d.playback(playbackPlay) }
func (d *Device) Pause() error       { return d.playback(playbackPause) }
func (d *Device) FastForward() error { return d.playback(playbackFastForward) }
func (d *Device) Rewind() error      { return d.playback(playbackRewind) }

// Stop stops playback and discards the current position.
func (d *Device) Stop() error {
	if _, err := d.Command("00 18c5 ff 00000000"); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// SetTrack jumps to the start of a (zero-based) track.
func (d *Device) SetTrack(track uint16) error {
	if _, err := d.Command("00 1850 ff010000 0000 %>w", query.Word(track)); err != nil {
		return fmt.Errorf("jumping to track %d: %w", track, err)
	}
	return nil
}

func (d *Device) trackChange(direction uint16) error {
	if _, err := d.Command("00 1850 ff10 00000000 %>w", query.Word(direction)); err != nil {
		return fmt.Errorf("changing track: %w", err)
	}
	return nil
}

func (d *Device) Next() error     { return d.trackChange(0x0001) }
func (d *Device) Previous() error { return d.trackChange(0xffff) }
func (d *Device) Restart() error  { return d.trackChange(0x0000) }

// SetTime jumps to a position within a track.
func (d *Device) SetTime(track uint16, t Time) error {
	_, err := d.Command("00 1850 ff000000 0000 %>w %b %b %b %b",
		query.Word(track), query.Byte(query.BCD(uint8(t.Hour))), query.Byte(query.BCD(t.Minute)),
		query.Byte(query.BCD(t.Second)), query.Byte(query.BCD(t.Frame)))
	if err != nil {
		return fmt.Errorf("seeking to %s in track %d: %w", t, track, err)
	}
	return nil
}

func (d *Device) SetPlayMode(mode PlayMode) error {
	if _, err := d.Command("00 18d1 ff01 0000 0088 08 %>w 00", query.Word(uint16(mode))); err != nil {
		return fmt.Errorf("setting play mode %#04x: %w", uint16(mode), err)
	}
	return nil
}

// statusTemplate matches the operating status block reply up to the current
// track and position.
var statusTemplate = "%? 1809 8001 0430" + strings.Repeat(" %?", 28) + " %>w %b %b %b %b %*"

func (d *Device) operatingStatus() (uint16, Time, error) {
	d.handshake(OperatingStatusBlock, DescriptorOpenRead)
	defer d.handshake(OperatingStatusBlock, DescriptorClose)

	rsp, err := d.Command("00 1809 8001 0430 8802 0030 8805 0030 0003 0030 0002 00ff 0000000000")
	if err != nil {
		return 0, Time{}, fmt.Errorf("requesting operating status: %w", err)
	}
	vals, err := scanReply(rsp, statusTemplate)
	if err != nil {
		return 0, Time{}, fmt.Errorf("operating status: %w", err)
	}
	return vals[0].Uint16(), Time{
		Hour:   uint16(query.FromBCD(vals[1].Uint8())),
		Minute: query.FromBCD(vals[2].Uint8()),
		Second: query.FromBCD(vals[3].Uint8()),
		Frame:  query.FromBCD(vals[4].Uint8()),
	}, nil
}

// CurrentTrack returns the (zero-based) track under the pickup.
func (d *Device) CurrentTrack() (uint16, error) {
	track, _, err := d.operatingStatus()
	return track, err
}

// Position returns the current playback position.
func (d *Device) Position() (Time, error) {
	_, t, err := d.operatingStatus()
	return t, err
}

var capacityTemplate = "%? 1806 02101000 3080 0300" + strings.Repeat(" %?", 14) +
	" %>w %b %b %b %?%? %>w %b %b %b %?%? %>w %b %b %b %*"

// Capacity returns the recorded, total and available time of the disc.
func (d *Device) Capacity() (Capacity, error) {
	d.handshake(RootTD, DescriptorOpenRead)
	defer d.handshake(RootTD, DescriptorClose)

	rsp, err := d.Command("00 1806 02101000 3080 0300 ff00 00000000")
	if err != nil {
		return Capacity{}, fmt.Errorf("requesting capacity: %w", err)
	}
	vals, err := scanReply(rsp, capacityTemplate)
	if err != nil {
		return Capacity{}, fmt.Errorf("capacity: %w", err)
	}
	at := func(i int) Time {
		return Time{
			Hour:   query.FromBCD(vals[i].Uint16()),
			Minute: query.FromBCD(vals[i+1].Uint8()),
			Second: query.FromBCD(vals[i+2].Uint8()),
			Frame:  query.FromBCD(vals[i+3].Uint8()),
		}
	}
	return Capacity{Recorded: at(0), Total: at(4), Available: at(8)}, nil
}
