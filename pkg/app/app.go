// Package app ties an opened NetMD unit to the user's settings. It is
// shared by all CLI commands.
package app

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"

	"github.com/netmd-tools/mdctl/pkg/cache"
	"github.com/netmd-tools/mdctl/pkg/config"
	"github.com/netmd-tools/mdctl/pkg/devices"
	"github.com/netmd-tools/mdctl/pkg/discheader"
	"github.com/netmd-tools/mdctl/pkg/netmd"
	"github.com/netmd-tools/mdctl/pkg/patch"
	"github.com/netmd-tools/mdctl/pkg/secure"
)

type App struct {
	Usb    devices.Usb
	Desc   *devices.Description
	Dev    *netmd.Device
	Config *config.Config
	// Backups is nil when TOC backups are disabled.
	Backups *cache.Store
}

// New sets up the NetMD protocol on an opened USB device.
func New(usb devices.Usb, desc *devices.Description, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := usb.UseDefaultInterface(); err != nil {
		return nil, fmt.Errorf("claiming interface: %w", err)
	}
	dev, err := netmd.New(usb)
	if err != nil {
		return nil, err
	}
	if cfg.TitleCharset != "" {
		if err := dev.SetTitleCharset(cfg.TitleCharset); err != nil {
			return nil, err
		}
	}
	a := &App{
		Usb:    usb,
		Desc:   desc,
		Dev:    dev,
		Config: cfg,
	}
	if cfg.Backup {
		a.Backups = cache.New()
	}
	return a, nil
}

func (a *App) Close() error {
	return a.Usb.Close()
}

// Name identifies the device in backups and messages.
func (a *App) Name() string {
	if a.Desc != nil {
		return a.Desc.Model
	}
	name, err := a.Dev.DeviceName()
	if err != nil {
		glog.V(1).Infof("Device name: %v", err)
		return "unknown"
	}
	return name
}

// Header reads and parses the disc title text.
func (a *App) Header() (*discheader.Header, error) {
	raw, err := a.Dev.RawHeader()
	if err != nil {
		return nil, err
	}
	return discheader.Parse(raw), nil
}

// EditHeader applies fn to the disc header and writes the result back.
func (a *App) EditHeader(fn func(h *discheader.Header) error) error {
	return EditHeader(a.Dev, a.Backups, a.Name(), fn)
}

// HeaderDevice reads and writes the disc title text.
type HeaderDevice interface {
	RawHeader() (string, error)
	WriteRawHeader(header string) error
}

// EditHeader reads the header from dev, lets fn modify it and writes it
// back. The unmodified header is saved to store first, unless store is nil.
// Headers that fail their consistency check are never written.
func EditHeader(dev HeaderDevice, store *cache.Store, device string, fn func(h *discheader.Header) error) error {
	raw, err := dev.RawHeader()
	if err != nil {
		return err
	}
	h := discheader.Parse(raw)
	if err := fn(h); err != nil {
		return err
	}
	if err := h.Check(); err != nil {
		return fmt.Errorf("refusing to write header: %w", err)
	}
	updated := h.String()
	if updated == raw {
		glog.V(1).Infof("Header unchanged")
		return nil
	}
	if store != nil {
		if _, err := store.Save(device, cache.PayloadKindTOC, []byte(raw)); err != nil {
			return fmt.Errorf("backing up header: %w", err)
		}
	}
	glog.V(1).Infof("New header: %q", updated)
	return dev.WriteRawHeader(updated)
}

// RestoreHeader writes a backed up header to the disc. The current header
// is backed up first.
func RestoreHeader(dev HeaderDevice, store *cache.Store, device string, b *cache.Backup) error {
	data, err := store.Load(b)
	if err != nil {
		return err
	}
	if raw, err := dev.RawHeader(); err != nil {
		glog.Warningf("Could not read current header: %v", err)
	} else if _, err := store.Save(device, cache.PayloadKindTOC, []byte(raw)); err != nil {
		return fmt.Errorf("backing up header: %w", err)
	}
	return dev.WriteRawHeader(string(data))
}

func (a *App) RestoreHeader(b *cache.Backup) error {
	if a.Backups == nil {
		return errors.New("backups are disabled in the config")
	}
	return RestoreHeader(a.Dev, a.Backups, a.Name(), b)
}

// DeleteTracks erases the zero-based tracks first to last and shifts the
// groups after them.
func (a *App) DeleteTracks(first, last uint16) error {
	count, err := a.Dev.TrackCount()
	if err != nil {
		return err
	}
	if first > last || last >= count {
		return fmt.Errorf("invalid track range %d-%d, disc has %d tracks", first, last, count)
	}
	if err := a.Dev.CacheTOC(); err != nil {
		return err
	}
	// From the end, so that track numbers stay valid.
	deleted := 0
	var errs error
	for t := int(last); t >= int(first); t-- {
		glog.V(1).Infof("Deleting track %d", t)
		if err := a.Dev.DeleteTrack(uint16(t)); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		a.Dev.WaitForSync()
		deleted += 1
	}
	if err := a.Dev.SyncTOC(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if deleted == 0 {
		return errs
	}

	err = a.EditHeader(func(h *discheader.Header) error {
		for i := 0; i < deleted; i++ {
			if err := h.DeleteTrack(int(last) + 1 - i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("groups not updated: %w", err))
	}
	return errs
}

// Session prepares a download session. SP downloads additionally need a
// unit whose firmware can be patched.
func (a *App) Session(sp bool) *secure.Session {
	if !sp {
		return secure.NewSession(a.Dev, nil)
	}
	p := patch.NewSession(a.Dev)
	if !p.SupportsSP() {
		glog.V(1).Infof("%s cannot be patched for SP download", a.Name())
		return secure.NewSession(a.Dev, nil)
	}
	return secure.NewSession(a.Dev, p)
}

// Leave tears down any download session left behind by a crashed client.
func (a *App) Leave() error {
	s := secure.NewSession(a.Dev, nil)
	var errs error
	if err := s.ForgetKey(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := s.LeaveSession(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}
