package adapter

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"tinygo.org/x/bluetooth"
)

// DefaultScanTimeout bounds the device scan on Open.
const DefaultScanTimeout = 30 * time.Second

// Portable BLE printers expose a vendor serial service in the 0xFF00 family;
// writes go to the 0xFF02 characteristic.
const (
	bleService byte = 0x00
	bleWriter  byte = 0x02
)

func bleUUID(t byte) bluetooth.UUID {
	return bluetooth.NewUUID([16]byte{
		0x00, 0x00, 0xff, t, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
	})
}

// BluetoothConfig selects the printer a BluetoothAdapter connects to.
type BluetoothConfig struct {
	// Name is the advertised device name to scan for.
	Name string

	// ScanTimeout bounds the scan on Open. Defaults to DefaultScanTimeout.
	ScanTimeout time.Duration

	// Logger receives discovery and connection events. Defaults to a
	// logger that discards everything.
	Logger logrus.FieldLogger
}

// BluetoothAdapter drives a Bluetooth LE printer through its serial service
// write characteristic. Each Open scans fresh, so a printer that rebooted or
// moved out of and back into range reconnects cleanly.
type BluetoothAdapter struct {
	cfg BluetoothConfig
	log logrus.FieldLogger

	mu     sync.Mutex
	device bluetooth.Device
	writer bluetooth.DeviceCharacteristic
	open   atomic.Bool
}

// NewBluetoothAdapter returns an unopened adapter for the printer advertising
// cfg.Name.
func NewBluetoothAdapter(cfg BluetoothConfig) *BluetoothAdapter {
	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &BluetoothAdapter{
		cfg: cfg,
		log: cfg.Logger.WithField("module", "bluetooth"),
	}
}

// Open scans for the printer, connects and resolves the write characteristic.
func (a *BluetoothAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open.Load() {
		return ErrAlreadyOpen
	}
	if a.cfg.Name == "" {
		return fmt.Errorf("bluetooth printer name is empty")
	}

	ble := bluetooth.DefaultAdapter
	if err := ble.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth: %w", err)
	}

	result, err := a.scan(ble)
	if err != nil {
		return err
	}
	a.log.WithField("address", result.Address.String()).Info("printer found, connecting")

	device, err := ble.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %q: %w", a.cfg.Name, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{bleUUID(bleService)})
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("discover service: %w", err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bleUUID(bleWriter)})
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("discover write characteristic: %w", err)
	}

	a.device = device
	a.writer = chars[0]
	a.open.Store(true)
	a.log.WithField("name", a.cfg.Name).Info("bluetooth printer open")
	return nil
}

// scan runs a scan until the configured name shows up or the timeout stops it.
func (a *BluetoothAdapter) scan(ble *bluetooth.Adapter) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)

	timer := time.AfterFunc(a.cfg.ScanTimeout, func() {
		ble.StopScan()
	})
	defer timer.Stop()

	err := ble.Scan(func(ble *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != a.cfg.Name {
			return
		}
		select {
		case found <- result:
		default:
		}
		ble.StopScan()
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	}

	select {
	case result := <-found:
		return result, nil
	default:
		return bluetooth.ScanResult{}, fmt.Errorf("printer %q not found within %s", a.cfg.Name, a.cfg.ScanTimeout)
	}
}

// Write sends data to the printer's write characteristic.
func (a *BluetoothAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return 0, ErrNotOpen
	}

	n, err := a.writer.WriteWithoutResponse(data)
	if err != nil {
		return n, fmt.Errorf("bluetooth write: %w", err)
	}
	return n, nil
}

// Read is not supported; BLE printers push status through notifications
// instead of a readable stream.
func (a *BluetoothAdapter) Read(buf []byte) (int, error) {
	return 0, ErrReadNotSupported
}

// Close disconnects from the printer.
func (a *BluetoothAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open.Load() {
		return nil
	}

	err := a.device.Disconnect()
	a.device = bluetooth.Device{}
	a.writer = bluetooth.DeviceCharacteristic{}
	a.open.Store(false)
	a.log.Info("bluetooth printer closed")
	return err
}

// IsOpen reports whether the printer is connected.
func (a *BluetoothAdapter) IsOpen() bool {
	return a.open.Load()
}
