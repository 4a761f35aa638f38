package main

import (
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/hashicorp/go-multierror"

	"github.com/netmd-tools/mdctl/pkg/app"
	"github.com/netmd-tools/mdctl/pkg/devices"
)

type desktopApp struct {
	ctx *gousb.Context
	*app.App
}

type desktopUsb struct {
	usb  *gousb.Device
	intf *gousb.Interface
	out  map[int]*gousb.OutEndpoint
	done func()
}

func (d *desktopUsb) UseDefaultInterface() error {
	intf, done, err := d.usb.DefaultInterface()
	if err != nil {
		return err
	}
	d.intf = intf
	d.done = done
	return nil
}

func (d *desktopUsb) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	v, err := d.usb.Control(rType, request, val, idx, data)
	if err == gousb.ErrorTimeout {
		err = devices.UsbTimeoutError
	}
	return v, err
}

func (d *desktopUsb) BulkOut(endpoint int, data []byte) (int, error) {
	if d.intf == nil {
		return 0, fmt.Errorf("interface not claimed")
	}
	ep, ok := d.out[endpoint]
	if !ok {
		var err error
		ep, err = d.intf.OutEndpoint(endpoint)
		if err != nil {
			return 0, err
		}
		if d.out == nil {
			d.out = make(map[int]*gousb.OutEndpoint)
		}
		d.out[endpoint] = ep
	}
	n, err := ep.Write(data)
	if err == gousb.ErrorTimeout {
		err = devices.UsbTimeoutError
	}
	return n, err
}

func (d *desktopUsb) SetControlTimeout(dur time.Duration) error {
	d.usb.ControlTimeout = dur
	return nil
}

func (d *desktopUsb) GetStringDescriptor(descIndex int) (string, error) {
	return d.usb.GetStringDescriptor(descIndex)
}

func (d *desktopUsb) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	return d.usb.Close()
}

func (d *desktopApp) Close() error {
	if err := d.App.Close(); err != nil {
		return fmt.Errorf("when closing USB device: %w", err)
	}
	if err := d.ctx.Close(); err != nil {
		return fmt.Errorf("when closing context: %w", err)
	}
	return nil
}

// newApp opens the first known NetMD unit, honoring the device filter of
// the config.
func newApp() (*desktopApp, error) {
	vid, pid, err := cfg.DeviceFilter()
	if err != nil {
		return nil, err
	}

	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize USB: %w", err)
	}

	var errs error
	for _, deviceDesc := range devices.Descriptions {
		if vid != 0 && (deviceDesc.Vendor.VID() != vid || deviceDesc.PID != pid) {
			continue
		}
		usb, err := ctx.OpenDeviceWithVIDPID(deviceDesc.Vendor.VID(), deviceDesc.PID)
		if err != nil {
			errs = multierror.Append(errs, err)
		}

		if usb == nil {
			continue
		}

		a, err := app.New(&desktopUsb{usb: usb}, &deviceDesc, cfg)
		if err != nil {
			usb.Close()
			ctx.Close()
			return nil, err
		}
		return &desktopApp{ctx, a}, nil
	}
	ctx.Close()
	if errs == nil {
		return nil, fmt.Errorf("no NetMD device found")
	}
	return nil, errs
}

func newContext() (*gousb.Context, error) {
	resC := make(chan *gousb.Context)
	errC := make(chan error)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errC <- fmt.Errorf("%v", r)
			}
		}()

		resC <- gousb.NewContext()
	}()

	select {
	case err := <-errC:
		return nil, err
	case res := <-resC:
		return res, nil
	}
}
