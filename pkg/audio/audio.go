// Package audio recognizes the audio containers that can be downloaded to a
// NetMD unit and turns them into wire-ready payloads.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"
)

var ErrUnsupportedAudio = errors.New("unsupported audio format")

// MinLength is the size of the smallest usable file: a RIFF/WAVE header
// for ATRAC, a data chunk header and one LP4 frame.
const MinLength = 52 + 8 + 92

const (
	formatTagPCM    = 0x0001
	formatTagATRAC3 = 0x0270

	blockSizeLP2 = 384
	blockSizeLP4 = 192

	spHeaderSize = 2048
	spSectorSize = 2332
	spPadding    = 100
	spFrameSize  = 212
)

// WireFormat is the encoding of audio as it is sent over USB.
type WireFormat uint8

const (
	WirePCM   WireFormat = 0x00
	WireLP105 WireFormat = 0x90
	WireLP2   WireFormat = 0x94
	WireLP4   WireFormat = 0xa8
)

func (w WireFormat) String() string {
	switch w {
	case WirePCM:
		return "PCM"
	case WireLP105:
		return "105kbps"
	case WireLP2:
		return "LP2"
	case WireLP4:
		return "LP4"
	}
	return fmt.Sprintf("WireFormat(%#02x)", uint8(w))
}

// FrameSize is the size in bytes of one frame of the wire format.
func (w WireFormat) FrameSize(channels int) int {
	switch w {
	case WirePCM:
		if channels == 1 {
			return 1024
		}
		return 2048
	case WireLP105:
		return 152
	case WireLP2:
		return 192
	case WireLP4:
		return 96
	}
	return 0
}

// DiscFormat is the encoding a track is recorded in.
type DiscFormat uint8

const (
	DiscLP4      DiscFormat = 0
	DiscLP2      DiscFormat = 2
	DiscSPMono   DiscFormat = 4
	DiscSPStereo DiscFormat = 6
)

func (d DiscFormat) String() string {
	switch d {
	case DiscLP4:
		return "LP4"
	case DiscLP2:
		return "LP2"
	case DiscSPMono:
		return "SP mono"
	case DiscSPStereo:
		return "SP stereo"
	}
	return fmt.Sprintf("DiscFormat(%d)", uint8(d))
}

// Conversion is the transformation needed to turn file data into wire data.
type Conversion int

const (
	ConvertNone Conversion = iota
	// ConvertByteSwap turns little endian PCM into big endian PCM.
	ConvertByteSwap
	// ConvertSPPadding pads raw ATRAC1 sectors for SP download.
	ConvertSPPadding
)

// Format describes a recognized audio file.
type Format struct {
	Wire       WireFormat
	Disc       DiscFormat
	Channels   int
	Conversion Conversion
	// HeaderSize is where the search for audio data starts.
	HeaderSize int
}

// SP returns true if the file is raw ATRAC1, which needs a firmware patch
// to be accepted.
func (f *Format) SP() bool {
	return f.Conversion == ConvertSPPadding
}

type waveHeader struct {
	Riff          [4]byte
	Size          uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	FormatTag     uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Classify inspects the start of an audio file.
func Classify(data []byte) (*Format, error) {
	if len(data) < MinLength {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrUnsupportedAudio, len(data))
	}
	var hdr waveHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}
	if string(hdr.Riff[:]) != "RIFF" || string(hdr.Wave[:]) != "WAVE" || string(hdr.Fmt[:]) != "fmt " {
		// Not a wave file. Raw ATRAC1 files are only loosely recognizable.
		if data[1] == 8 && len(data) > spHeaderSize {
			channels := 1
			if data[264] == 2 {
				channels = 2
			}
			return &Format{
				Wire:       WireLP105,
				Disc:       DiscLP2,
				Channels:   channels,
				Conversion: ConvertSPPadding,
				HeaderSize: spHeaderSize,
			}, nil
		}
		return nil, fmt.Errorf("%w: not a wave file", ErrUnsupportedAudio)
	}

	headerSize := 20 + int(hdr.FmtSize)
	switch hdr.FormatTag {
	case formatTagPCM:
		if hdr.SampleRate != 44100 {
			return nil, fmt.Errorf("%w: PCM sample rate %d, must be 44100", ErrUnsupportedAudio, hdr.SampleRate)
		}
		if hdr.BitsPerSample != 16 {
			return nil, fmt.Errorf("%w: PCM with %d bits per sample, must be 16", ErrUnsupportedAudio, hdr.BitsPerSample)
		}
		f := &Format{
			Wire:       WirePCM,
			Conversion: ConvertByteSwap,
			HeaderSize: headerSize,
		}
		switch hdr.Channels {
		case 1:
			f.Channels, f.Disc = 1, DiscSPMono
		case 2:
			f.Channels, f.Disc = 2, DiscSPStereo
		default:
			return nil, fmt.Errorf("%w: PCM with %d channels", ErrUnsupportedAudio, hdr.Channels)
		}
		return f, nil
	case formatTagATRAC3:
		if hdr.SampleRate != 44100 {
			return nil, fmt.Errorf("%w: ATRAC3 sample rate %d, must be 44100", ErrUnsupportedAudio, hdr.SampleRate)
		}
		f := &Format{
			Channels:   2,
			Conversion: ConvertNone,
			HeaderSize: headerSize,
		}
		switch hdr.BlockAlign {
		case blockSizeLP2:
			f.Wire, f.Disc = WireLP2, DiscLP2
		case blockSizeLP4:
			f.Wire, f.Disc = WireLP4, DiscLP4
		default:
			return nil, fmt.Errorf("%w: ATRAC3 block size %d", ErrUnsupportedAudio, hdr.BlockAlign)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: format tag %#04x", ErrUnsupportedAudio, hdr.FormatTag)
}

// Track is audio ready for download.
type Track struct {
	Format
	// Data is the payload in wire byte order.
	Data []byte
	// Frames overrides the frame count derived from the payload size when
	// non-zero.
	Frames int
}

// Load classifies a file and extracts its payload, applying whatever
// conversion the format needs. The input is not modified.
func Load(data []byte) (*Track, error) {
	f, err := Classify(data)
	if err != nil {
		return nil, err
	}
	t := &Track{Format: *f}

	if f.SP() {
		t.Frames = (len(data) - spHeaderSize) / spFrameSize
		t.Data = PadSP(data[spHeaderSize:])
		glog.V(1).Infof("SP payload: %d bytes, %d frames", len(t.Data), t.Frames)
		return t, nil
	}

	pos := dataChunk(data, f.HeaderSize)
	if pos < 0 {
		return nil, fmt.Errorf("%w: no data chunk", ErrUnsupportedAudio)
	}
	start := pos + 8
	size := int(binary.LittleEndian.Uint32(data[pos+4:]))
	if avail := len(data) - start; size > avail {
		glog.Warningf("Data chunk claims %d bytes, file only has %d", size, avail)
		size = avail
	}
	glog.V(1).Infof("Data chunk at %d, %d bytes", pos, size)

	t.Data = bytes.Clone(data[start : start+size])
	if f.Conversion == ConvertByteSwap {
		SwapBytes(t.Data)
	}
	return t, nil
}

// dataChunk finds the "data" chunk of a wave file, looking at even offsets
// from start.
func dataChunk(data []byte, start int) int {
	for i := start; i+8 <= len(data); i += 2 {
		if string(data[i:i+4]) == "data" {
			return i
		}
	}
	return -1
}

// SwapBytes swaps every pair of bytes in place.
func SwapBytes(data []byte) {
	for i := 0; i+1 < len(data); i += 2 {
		data[i], data[i+1] = data[i+1], data[i]
	}
}

// PadSP lays raw ATRAC1 data out the way the patched firmware expects it:
// every 2332 byte sector is followed by 100 zero bytes. The last two bytes
// of every 212 byte frame are rewritten from its first two bytes, as some
// encoders leave them empty.
func PadSP(data []byte) []byte {
	sectors := (len(data) + spSectorSize - 1) / spSectorSize
	out := make([]byte, 0, len(data)+sectors*spPadding)
	for i := 0; i < len(data); i += spSectorSize {
		end := min(i+spSectorSize, len(data))
		sector := bytes.Clone(data[i:end])
		for j := 0; j+spFrameSize <= len(sector); j += spFrameSize {
			sector[j+spFrameSize-1] = sector[j]
			sector[j+spFrameSize-2] = sector[j+1]
		}
		out = append(out, sector...)
		out = append(out, make([]byte, spPadding)...)
	}
	return out
}
