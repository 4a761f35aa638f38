package secure

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"

	"github.com/netmd-tools/mdctl/pkg/audio"
)

var ErrNoPatcher = errors.New("SP download needs a firmware patcher")

// PartialError is returned when a track was downloaded but its metadata
// could not be written.
type PartialError struct {
	Track uint16
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("track %d downloaded, but: %v", e.Track, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// OnTheFly selects device side conversion of SP downloads.
type OnTheFly int

const (
	NoConversion OnTheFly = iota
	ConvertLP2
	ConvertLP4
)

// ParseOnTheFly parses the name of an on-the-fly conversion mode.
func ParseOnTheFly(s string) (OnTheFly, error) {
	switch s {
	case "", "none", "sp":
		return NoConversion, nil
	case "lp2":
		return ConvertLP2, nil
	case "lp4":
		return ConvertLP4, nil
	}
	return NoConversion, fmt.Errorf("unknown conversion %q, want lp2 or lp4", s)
}

func (o OnTheFly) discFormat(f audio.DiscFormat) audio.DiscFormat {
	if f != audio.DiscSPStereo {
		return f
	}
	switch o {
	case ConvertLP2:
		return audio.DiscLP2
	case ConvertLP4:
		return audio.DiscLP4
	}
	return f
}

// Upload describes one track to download.
type Upload struct {
	Track    *audio.Track
	Title    string
	OnTheFly OnTheFly
}

// Send downloads a track and titles it. Cleanup of the device state always
// runs; its failures are logged but not returned.
func (s *Session) Send(u *Upload) (*Download, error) {
	if u.Track.SP() && s.patcher == nil {
		return nil, ErrNoPatcher
	}

	// Sony units refuse this, Sharp units need it.
	if err := s.dev.Acquire(); err != nil {
		glog.V(1).Infof("Acquire: %v", err)
	}
	var patched bool
	defer func() {
		if cerr := s.cleanup(patched); cerr != nil {
			glog.Warningf("Cleaning up after download: %v", cerr)
		}
	}()

	if u.Track.SP() {
		patched = true
		if err := s.patcher.ApplySP(u.Track.Channels); err != nil {
			return nil, fmt.Errorf("patching for SP download: %w", err)
		}
	}

	if err := s.LeaveSession(); err != nil {
		glog.V(1).Infof("Leaving stale session: %v", err)
	}
	if err := s.SetTrackProtection(0x01); err != nil {
		return nil, fmt.Errorf("setting track protection: %w", err)
	}
	if err := s.EnterSession(); err != nil {
		return nil, fmt.Errorf("entering session: %w", err)
	}
	if err := s.SendEKB(s.ekb); err != nil {
		return nil, fmt.Errorf("sending EKB: %w", err)
	}

	var hostNonce [8]byte
	if _, err := io.ReadFull(s.rand, hostNonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	devNonce, err := s.ExchangeNonces(hostNonce)
	if err != nil {
		return nil, fmt.Errorf("exchanging nonces: %w", err)
	}
	sessionKey, err := RetailMAC(s.rootKey, hostNonce, devNonce)
	if err != nil {
		return nil, err
	}
	if err := s.SetupDownload(sessionKey); err != nil {
		return nil, fmt.Errorf("setting up download: %w", err)
	}

	packets, frames, err := Packetize(u.Track.Data, u.Track.Wire.FrameSize(u.Track.Channels), s.kek, s.rand)
	if err != nil {
		return nil, fmt.Errorf("encrypting track: %w", err)
	}
	if u.Track.Frames != 0 {
		frames = u.Track.Frames
	}
	disc := u.OnTheFly.discFormat(u.Track.Disc)
	glog.Infof("Downloading %d frames of %s as %s", frames, u.Track.Wire, disc)

	res, err := s.SendTrack(uint8(u.Track.Wire), uint8(disc), frames, packets, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("sending track: %w", err)
	}
	glog.Infof("Track %d downloaded", res.Track)

	var titleErr error
	if err := s.dev.CacheTOC(); err != nil {
		titleErr = multierror.Append(titleErr, fmt.Errorf("caching TOC: %w", err))
	}
	if err := s.dev.SetTrackTitle(res.Track, u.Title); err != nil {
		titleErr = multierror.Append(titleErr, fmt.Errorf("setting title: %w", err))
	}
	if err := s.dev.SyncTOC(); err != nil {
		titleErr = multierror.Append(titleErr, fmt.Errorf("syncing TOC: %w", err))
	}

	if err := s.Commit(res.Track, sessionKey); err != nil {
		return res, fmt.Errorf("committing track %d: %w", res.Track, err)
	}
	if titleErr != nil {
		return res, &PartialError{Track: res.Track, Err: titleErr}
	}
	return res, nil
}

// cleanup returns the device to its idle state. Every step runs even if
// earlier ones fail.
func (s *Session) cleanup(patched bool) error {
	var errs error
	if err := s.ForgetKey(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("forgetting key: %w", err))
	}
	if err := s.LeaveSession(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("leaving session: %w", err))
	}
	if patched {
		if err := s.patcher.UndoSP(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing SP patch: %w", err))
		}
	}
	if err := s.dev.Release(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("releasing: %w", err))
	}
	return errs
}
