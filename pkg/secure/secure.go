// Package secure implements track download to a NetMD unit: the EKB and
// session key exchange, payload encryption and the download itself.
package secure

import (
	"crypto/des"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/netmd-tools/mdctl/pkg/netmd"
	"github.com/netmd-tools/mdctl/pkg/query"
)

// Device is the part of a NetMD unit needed for track download.
type Device interface {
	Exchange(cmd []byte) ([]byte, error)
	Submit(cmd []byte) error
	ReadResponse() ([]byte, error)
	BulkOut(data []byte) error

	Acquire() error
	Release() error
	CacheTOC() error
	SyncTOC() error
	SetTrackTitle(track uint16, title string) error
}

// Patcher applies the firmware patch needed for SP download.
type Patcher interface {
	ApplySP(channels int) error
	UndoSP() error
}

// EKB is an enabling key block, proving to the device that the host holds
// a valid root key.
type EKB struct {
	ID        uint32
	Depth     uint32
	Signature [24]byte
	Chain     [][16]byte
}

// DefaultEKB is accepted by all known devices and unlocks RootKey.
var DefaultEKB = EKB{
	ID:    0x26422642,
	Depth: 9,
	Signature: [24]byte{
		0xe8, 0xef, 0x73, 0x45, 0x8d, 0x5b, 0x8b, 0xf8,
		0xe8, 0xef, 0x73, 0x45, 0x8d, 0x5b, 0x8b, 0xf8,
		0x38, 0x5b, 0x49, 0x36, 0x7b, 0x42, 0x0c, 0x58,
	},
	Chain: [][16]byte{
		{0x25, 0x45, 0x06, 0x4d, 0xea, 0xca, 0x14, 0xf9, 0x96, 0xbd, 0xc8, 0xa4, 0x06, 0xc2, 0x2b, 0x81},
		{0x49, 0xba, 0xf0, 0xdf, 0x26, 0x9d, 0xb7, 0x1d, 0x49, 0xba, 0xf0, 0xdf, 0x26, 0x9d, 0xb7, 0x1d},
	},
}

var (
	RootKey = [16]byte{
		0x13, 0x37, 0x13, 0x37, 0x13, 0x37, 0x13, 0x37,
		0x13, 0x37, 0x13, 0x37, 0x13, 0x37, 0x13, 0x37,
	}
	// KEK is the key encryption key for track keys.
	KEK       = [8]byte{0x14, 0xe3, 0x83, 0x4e, 0xe2, 0xd3, 0xcc, 0xa5}
	ContentID = [20]byte{
		0x01, 0x0f, 0x50, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x48,
		0xa2, 0x8d, 0x3e, 0x1a, 0x3b, 0x0c, 0x44, 0xaf, 0x2f, 0xa0,
	}
)

const (
	cmdSetProtection uint8 = 0x2b
	cmdSendEKB       uint8 = 0x12
	cmdNonces        uint8 = 0x20
	cmdForgetKey     uint8 = 0x21
	cmdSetup         uint8 = 0x22
	cmdSendTrack     uint8 = 0x28
	cmdCommit        uint8 = 0x48
	cmdEnterSession  uint8 = 0x80
	cmdLeaveSession  uint8 = 0x81
)

const securePrefix = "00 1800 080046 f0030103"

// Session drives the secure command set of one device.
type Session struct {
	dev     Device
	patcher Patcher
	rand    io.Reader

	ekb       EKB
	rootKey   [16]byte
	kek       [8]byte
	contentID [20]byte
}

// NewSession prepares a download session with the default keys. patcher
// may be nil if only wave files are downloaded.
func NewSession(dev Device, patcher Patcher) *Session {
	return &Session{
		dev:       dev,
		patcher:   patcher,
		rand:      rand.Reader,
		ekb:       DefaultEKB,
		rootKey:   RootKey,
		kek:       KEK,
		contentID: ContentID,
	}
}

func (s *Session) command(code uint8, args *query.Builder) ([]byte, error) {
	tail, err := args.Build()
	if err != nil {
		return nil, err
	}
	cmd, err := query.NewBuilder().Hex(securePrefix).Byte(code).Hex("ff").Bytes(tail).Build()
	if err != nil {
		return nil, err
	}
	return s.dev.Exchange(cmd)
}

// reply checks that a response belongs to a secure command and returns
// the bytes following the command code and status.
func reply(code uint8, rsp []byte) ([]byte, error) {
	vals, err := query.Scan(rsp, "%? 1800 080046 f0030103 %b %? %*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", netmd.ErrResponseUnexpected, err)
	}
	if got := vals[0].Uint8(); got != code {
		return nil, fmt.Errorf("%w: reply to %#02x for command %#02x", netmd.ErrResponseUnexpected, got, code)
	}
	return vals[1].Data, nil
}

func (s *Session) simple(code uint8, b *query.Builder) error {
	rsp, err := s.command(code, b)
	if err != nil {
		return err
	}
	_, err = reply(code, rsp)
	return err
}

func (s *Session) EnterSession() error {
	return s.simple(cmdEnterSession, query.NewBuilder())
}

func (s *Session) LeaveSession() error {
	return s.simple(cmdLeaveSession, query.NewBuilder())
}

// SetTrackProtection selects the copy protection of downloaded tracks.
func (s *Session) SetTrackProtection(mode uint32) error {
	return s.simple(cmdSetProtection, query.NewBuilder().DwordBE(mode))
}

// SendEKB sends the key block unlocking the root key.
func (s *Session) SendEKB(ekb EKB) error {
	size := uint16(16 + 16*len(ekb.Chain) + len(ekb.Signature))
	b := query.NewBuilder().
		WordBE(size).Hex("0000").WordBE(size).
		DwordBE(uint32(len(ekb.Chain))).DwordBE(ekb.Depth).DwordBE(ekb.ID).
		Hex("00000000")
	for _, k := range ekb.Chain {
		b.Bytes(k[:])
	}
	b.Bytes(ekb.Signature[:])
	return s.simple(cmdSendEKB, b)
}

// ExchangeNonces sends the host nonce and returns the device nonce.
func (s *Session) ExchangeNonces(host [8]byte) ([8]byte, error) {
	var dev [8]byte
	rsp, err := s.command(cmdNonces, query.NewBuilder().Hex("000000").Bytes(host[:]))
	if err != nil {
		return dev, err
	}
	data, err := reply(cmdNonces, rsp)
	if err != nil {
		return dev, err
	}
	if len(data) < 3+len(dev) {
		return dev, fmt.Errorf("%w: nonce reply", netmd.ErrResponseTooShort)
	}
	copy(dev[:], data[3:])
	return dev, nil
}

// ForgetKey makes the device drop the session key.
func (s *Session) ForgetKey() error {
	return s.simple(cmdForgetKey, query.NewBuilder().Hex("000000"))
}

// SetupDownload hands the content ID and KEK to the device, encrypted
// with the session key.
func (s *Session) SetupDownload(sessionKey [8]byte) error {
	msg := []byte{0x01, 0x01, 0x01, 0x01}
	msg = append(msg, s.contentID[:]...)
	msg = append(msg, s.kek[:]...)
	enc, err := desCBC(sessionKey, msg, true)
	if err != nil {
		return err
	}
	return s.simple(cmdSetup, query.NewBuilder().Hex("0000").Bytes(enc))
}

// Commit finalizes a downloaded track.
func (s *Session) Commit(track uint16, sessionKey [8]byte) error {
	block, err := des.NewCipher(sessionKey[:])
	if err != nil {
		return err
	}
	auth := make([]byte, 8)
	block.Encrypt(auth, make([]byte, 8))
	return s.simple(cmdCommit, query.NewBuilder().Hex("00 1001").WordBE(track).Bytes(auth))
}

// Download is the result of a track download.
type Download struct {
	Track     uint16
	UUID      [8]byte
	ContentID [20]byte
}

// SendTrack streams the packets and returns where the device stored them.
func (s *Session) SendTrack(wire uint8, disc uint8, frames int, p *Packets, sessionKey [8]byte) (*Download, error) {
	cmd, err := query.NewBuilder().
		Hex(securePrefix).Byte(cmdSendTrack).Hex("ff 000100 1001 ffff 00").
		Byte(wire).Byte(disc).
		DwordBE(uint32(frames)).DwordBE(uint32(p.Length + packetHeaderSize)).
		Build()
	if err != nil {
		return nil, err
	}
	if err := s.dev.Submit(cmd); err != nil {
		return nil, fmt.Errorf("starting download: %w", err)
	}
	rsp, err := s.dev.ReadResponse()
	if err != nil {
		return nil, fmt.Errorf("starting download: %w", err)
	}
	if netmd.ResponseCode(rsp[0]) != netmd.ResponseInterim {
		return nil, fmt.Errorf("%w: download not started, got %s", netmd.ErrResponseUnexpected, netmd.ResponseCode(rsp[0]))
	}

	for i, t := range p.Transfers() {
		glog.V(1).Infof("Bulk transfer %d: %d bytes", i, len(t))
		if err := s.dev.BulkOut(t); err != nil {
			return nil, fmt.Errorf("sending chunk %d: %w", i, err)
		}
	}

	rsp, err = s.dev.ReadResponse()
	if err != nil {
		return nil, fmt.Errorf("finishing download: %w", err)
	}
	vals, err := query.Scan(rsp, "%? 1800 080046 f0030103 28 %? 000100 1001 %>w 00 %?%? %?%?%?%? %?%?%?%? %*")
	if err != nil {
		return nil, fmt.Errorf("%w: download reply: %w", netmd.ErrResponseUnexpected, err)
	}
	enc := vals[1].Data
	if len(enc) < 32 {
		return nil, fmt.Errorf("%w: download reply", netmd.ErrResponseTooShort)
	}
	plain, err := desCBC(sessionKey, enc[:32], false)
	if err != nil {
		return nil, err
	}
	d := &Download{Track: vals[0].Uint16()}
	copy(d.UUID[:], plain[:8])
	copy(d.ContentID[:], plain[12:32])
	return d, nil
}
