package adapter

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// IfaceClassPrinter is the USB interface class code for printers.
// Reference: http://www.usb.org/developers/defined_class
const IfaceClassPrinter = 0x07

// USBConfig selects the device a USBAdapter opens. The zero config opens the
// first device exposing a printer-class interface.
type USBConfig struct {
	// VID and PID select a specific device. Both zero means auto-detect.
	VID, PID uint16

	// Serial narrows auto-detection to the printer with this serial number.
	Serial string

	// Logger receives discovery and connection events. Defaults to a logger
	// that discards everything.
	Logger logrus.FieldLogger
}

// USBAdapter drives a USB printer through gousb. The device is located and
// claimed on every Open and fully released on Close, so a re-plugged or
// power-cycled printer can be picked up again with a plain reopen.
type USBAdapter struct {
	cfg USBConfig
	log logrus.FieldLogger

	mu          sync.Mutex
	ctx         *gousb.Context
	device      *gousb.Device
	iface       *gousb.Interface
	outEndpoint *gousb.OutEndpoint
	inEndpoint  *gousb.InEndpoint
	open        atomic.Bool
}

// NewUSBAdapter returns an unopened adapter for the device cfg selects.
func NewUSBAdapter(cfg USBConfig) *USBAdapter {
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &USBAdapter{
		cfg: cfg,
		log: cfg.Logger.WithField("module", "usb"),
	}
}

// Open locates the configured device, claims its printer interface and
// resolves the bulk endpoints.
func (a *USBAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open.Load() {
		return ErrAlreadyOpen
	}

	ctx := gousb.NewContext()
	device, err := a.findDevice(ctx)
	if err != nil {
		ctx.Close()
		return err
	}

	// Kernel drivers (usblp) hold the interface on Linux.
	if runtime.GOOS == "linux" {
		device.SetAutoDetach(true)
	}

	if err := a.claim(device); err != nil {
		device.Close()
		ctx.Close()
		return err
	}

	a.ctx = ctx
	a.device = device
	a.open.Store(true)
	a.log.WithField("device", device.String()).Info("usb printer open")
	return nil
}

// findDevice opens the device selected by the adapter config.
func (a *USBAdapter) findDevice(ctx *gousb.Context) (*gousb.Device, error) {
	if a.cfg.VID != 0 || a.cfg.PID != 0 {
		device, err := ctx.OpenDeviceWithVIDPID(gousb.ID(a.cfg.VID), gousb.ID(a.cfg.PID))
		if err != nil {
			return nil, fmt.Errorf("open device %04x:%04x: %w", a.cfg.VID, a.cfg.PID, err)
		}
		if device == nil {
			return nil, fmt.Errorf("device %04x:%04x not found", a.cfg.VID, a.cfg.PID)
		}
		return device, nil
	}

	printers := FindPrinters(ctx)
	if len(printers) == 0 {
		return nil, errors.New("cannot find printer")
	}

	selected := -1
	for i, dev := range printers {
		if a.cfg.Serial == "" {
			selected = i
			break
		}
		serial, err := dev.SerialNumber()
		if err == nil && serial == a.cfg.Serial {
			selected = i
			break
		}
	}

	for i, dev := range printers {
		if i != selected {
			dev.Close()
		}
	}
	if selected < 0 {
		return nil, fmt.Errorf("printer with serial %q not found", a.cfg.Serial)
	}
	return printers[selected], nil
}

// claim claims the printer interface and resolves its endpoints.
func (a *USBAdapter) claim(device *gousb.Device) error {
	cfgNum, err := device.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("get active config: %w", err)
	}

	cfg, err := device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("get config %d: %w", cfgNum, err)
	}
	defer cfg.Close()

	num := printerInterface(cfg.Desc)
	if num < 0 {
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(num, 0)
	if err != nil {
		return fmt.Errorf("claim interface %d: %w", num, err)
	}

	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && out == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && in == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				in = ep
			}
		}
	}
	if out == nil {
		iface.Close()
		return errors.New("cannot find output endpoint from printer")
	}

	a.iface = iface
	a.outEndpoint = out
	a.inEndpoint = in
	return nil
}

// printerInterface returns the number of the first printer-class interface,
// or -1 if the configuration has none.
func printerInterface(desc gousb.ConfigDesc) int {
	for _, iface := range desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				return iface.Number
			}
		}
	}
	return -1
}

// IsPrinter reports whether dev exposes a printer-class interface.
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return false
	}
	defer cfg.Close()

	return printerInterface(cfg.Desc) >= 0
}

// FindPrinters returns all connected USB printer devices, opened. The caller
// owns the returned devices and must close them.
func FindPrinters(ctx *gousb.Context) []*gousb.Device {
	var printers []*gousb.Device

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	if err != nil {
		return printers
	}

	for _, dev := range devices {
		if IsPrinter(dev) {
			printers = append(printers, dev)
		} else {
			dev.Close()
		}
	}

	return printers
}

// Write sends data to the printer's bulk out endpoint.
func (a *USBAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	n, err := a.outEndpoint.Write(data)
	if err != nil {
		return n, fmt.Errorf("usb write: %w", err)
	}
	return n, nil
}

// Read reads from the printer's bulk in endpoint, if it has one.
func (a *USBAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}
	if a.inEndpoint == nil {
		return 0, ErrReadNotSupported
	}

	n, err := a.inEndpoint.Read(buf)
	if err != nil {
		return n, fmt.Errorf("usb read: %w", err)
	}
	return n, nil
}

// Close releases the interface, the device and the USB context.
func (a *USBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return nil
	}

	var errs []error

	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	a.outEndpoint = nil
	a.inEndpoint = nil

	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, err)
		}
		a.device = nil
	}

	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ctx = nil
	}

	a.open.Store(false)
	a.log.Info("usb printer closed")
	return errors.Join(errs...)
}

// IsOpen reports whether the device is open.
func (a *USBAdapter) IsOpen() bool {
	return a.open.Load()
}
