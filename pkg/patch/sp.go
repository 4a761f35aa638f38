package patch

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"

	"github.com/netmd-tools/mdctl/pkg/netmd"
)

// Addresses of patches found on development units.
var developerPatches = []uint32{0xe6c0, 0xe69c}

// EnableFactory switches the device into factory mode. Factory mode stays
// enabled on the host side even if the device rejected part of the
// sequence.
func (s *Session) EnableFactory() error {
	var errs error
	if err := s.dev.ChangeDescriptorState(netmd.DiscSubunitIdentifier, netmd.DescriptorOpenRead); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("opening subunit identifier: %w", err))
	}
	if _, err := s.dev.Exchange([]byte{0x00, 0x18, 0x09, 0x00, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00}); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("requesting subunit info: %w", err))
	}
	s.dev.SetFactoryMode(true)
	if _, err := s.command("00 1801 ff0e 4e6574204d442057616c6b6d616e"); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("unlocking factory commands: %w", err))
	}
	return errs
}

// SafetyPatch makes sure the anti-brick patch is loaded, looking for an
// existing copy first. Slots holding it are claimed by the session.
func (s *Session) SafetyPatch(fw Firmware) error {
	addr, ok := Address(fw, Safety)
	payload, ok2 := Payload(fw, Safety)
	if !ok || !ok2 {
		glog.V(1).Infof("No safety patch known for %s", fw)
		return nil
	}

	found := false
	for i := 0; i < MaxSlots; i++ {
		a, data, err := s.ReadPatch(i)
		if err != nil {
			glog.V(1).Infof("Reading patch slot %d: %v", i, err)
			continue
		}
		if a == addr && data == payload {
			glog.V(1).Infof("Safety patch found in slot %d", i)
			found = true
			s.slots[i] = Safety
		}
		for _, dev := range developerPatches {
			if a == dev {
				glog.V(1).Infof("Developer patch found in slot %d", i)
				found = true
				s.slots[i] = Safety
			}
		}
	}
	if found {
		return nil
	}

	slot, err := s.allocate(Safety)
	if err != nil {
		return err
	}
	if err := s.Patch(slot, addr, payload); err != nil {
		return fmt.Errorf("applying safety patch: %w", err)
	}
	glog.Infof("Safety patch applied in slot %d", slot)
	return nil
}

type spPatch struct {
	purpose Purpose
	address uint32
	payload [4]byte
}

// spPlan resolves the patches needed for SP upload. Nothing is returned
// unless every address and payload is known.
func spPlan(fw Firmware, variant Purpose, channels int) ([]spPatch, error) {
	plan := []struct {
		purpose, addr Purpose
	}{
		{Patch0, variant},
		{Common1, Common1},
		{Common2, Common2},
		{Prep, Prep},
		{TrackType, TrackType},
	}
	var res []spPatch
	for _, p := range plan {
		addr, ok := Address(fw, p.addr)
		if !ok {
			return nil, fmt.Errorf("%w: no %s address for %s", ErrUnsupportedDevice, p.addr, fw)
		}
		payload, ok := Payload(fw, p.purpose)
		if !ok {
			return nil, fmt.Errorf("%w: no %s payload for %s", ErrUnsupportedDevice, p.purpose, fw)
		}
		if p.purpose == TrackType {
			if channels == 1 {
				payload[1] = 4
			} else {
				payload[1] = 6
			}
		}
		res = append(res, spPatch{purpose: p.purpose, address: addr, payload: payload})
	}
	return res, nil
}

// patch0Variant picks between the two main patch locations of a firmware
// generation.
func (s *Session) patch0Variant(fw Firmware) (Purpose, error) {
	switch fw {
	case FirmwareUnknown:
		return Unused, nil
	case FirmwareS1200:
		return Patch0B, nil
	}
	addr, ok := Address(fw, DevType)
	if !ok {
		return Unused, nil
	}
	b, err := s.ReadMemory(addr, 1)
	if err != nil {
		return Unused, fmt.Errorf("reading device type: %w", err)
	}
	if len(b) == 0 {
		return Unused, nil
	}
	if b[0] == 1 {
		return Patch0B, nil
	}
	return Patch0A, nil
}

// ApplySP patches the firmware to accept pre-encoded SP audio with the given
// number of channels.
func (s *Session) ApplySP(channels int) error {
	if err := s.EnableFactory(); err != nil {
		s.dev.SetFactoryMode(false)
		return fmt.Errorf("enabling factory mode: %w", err)
	}
	defer s.dev.SetFactoryMode(false)

	code, fw, err := s.DeviceCode()
	if err != nil {
		return err
	}
	if err := s.SafetyPatch(fw); err != nil {
		return err
	}
	variant, err := s.patch0Variant(fw)
	if err != nil {
		return err
	}
	if variant == Unused {
		return fmt.Errorf("%w: cannot determine main patch for %q", ErrUnsupportedDevice, code)
	}
	plan, err := spPlan(fw, variant, channels)
	if err != nil {
		return err
	}

	for _, p := range plan {
		slot, err := s.allocate(p.purpose)
		if err != nil {
			return err
		}
		if err := s.Patch(slot, p.address, p.payload); err != nil {
			return fmt.Errorf("applying %s patch: %w", p.purpose, err)
		}
	}
	glog.Infof("SP upload patches applied for %s", fw)
	return nil
}

// UndoSP removes the patches applied by ApplySP. The safety patch stays.
func (s *Session) UndoSP() error {
	s.dev.SetFactoryMode(true)
	defer s.dev.SetFactoryMode(false)

	var errs error
	for _, p := range []Purpose{Patch0, Common1, Common2, Prep, TrackType} {
		if err := s.Unpatch(p); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing %s patch: %w", p, err))
		}
	}
	return errs
}

// SupportsSP returns true if the device runs a firmware generation that can
// be patched for SP upload.
func (s *Session) SupportsSP() bool {
	defer s.dev.SetFactoryMode(false)
	if err := s.EnableFactory(); err != nil {
		glog.V(1).Infof("Enabling factory mode: %v", err)
		return false
	}
	_, fw, err := s.DeviceCode()
	if err != nil {
		glog.V(1).Infof("Requesting device code: %v", err)
		return false
	}
	return fw != FirmwareUnknown
}
