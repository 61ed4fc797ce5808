// pkg/serialkit/usbbulk/usbbulk.go

// Package usbbulk lets serialkit talk to USB devices that expose a raw
// bulk interface instead of a CDC serial port. Importing the package
// registers the "usb" scheme:
//
//	usb:04b8:0202        vendor 04b8, product 0202, endpoint 1
//	usb:0x04b8:0x0202:2  endpoint 2
//
// Framing parameters (baud rate, parity, stop bits) do not apply to bulk
// endpoints and are ignored.
package usbbulk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"

	"serialkit/pkg/serialkit"
)

// Scheme is the port identifier prefix handled by this package
const Scheme = "usb"

func init() {
	serialkit.RegisterBackend(Scheme, Open)
}

// Address identifies a bulk endpoint pair on a USB device
type Address struct {
	Vendor   gousb.ID
	Product  gousb.ID
	Endpoint int
}

// ParseAddress parses "usb:VID:PID[:endpoint]"
func ParseAddress(port string) (Address, error) {
	parts := strings.Split(port, ":")
	if len(parts) < 3 || len(parts) > 4 || !strings.EqualFold(parts[0], Scheme) {
		return Address{}, fmt.Errorf("%w: usb port must look like usb:VID:PID[:endpoint], got %q",
			serialkit.ErrInvalidConfig, port)
	}

	vendor, err := parseHexID(parts[1])
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid vendor ID %q", serialkit.ErrInvalidConfig, parts[1])
	}
	product, err := parseHexID(parts[2])
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid product ID %q", serialkit.ErrInvalidConfig, parts[2])
	}

	addr := Address{Vendor: vendor, Product: product, Endpoint: 1}
	if len(parts) == 4 {
		endpoint, err := strconv.Atoi(parts[3])
		if err != nil || endpoint < 1 || endpoint > 15 {
			return Address{}, fmt.Errorf("%w: invalid endpoint %q", serialkit.ErrInvalidConfig, parts[3])
		}
		addr.Endpoint = endpoint
	}
	return addr, nil
}

// parseHexID parses hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(hexStr), "0x")
	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}

// Port is a bulk endpoint pair driven like a serial port
type Port struct {
	ctx     *gousb.Context
	device  *gousb.Device
	intf    *gousb.Interface
	done    func()
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	mu      sync.Mutex
	timeout time.Duration
}

// Open claims the default interface of the addressed device
func Open(cfg serialkit.Config) (serialkit.Port, error) {
	addr, err := ParseAddress(cfg.Port)
	if err != nil {
		return nil, err
	}

	usbCtx := gousb.NewContext()

	device, err := findDevice(usbCtx, addr)
	if err != nil {
		usbCtx.Close()
		return nil, err
	}

	if err := device.SetAutoDetach(true); err != nil {
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to detach kernel driver: %w", err)
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("%w: failed to claim interface: %v", serialkit.ErrPortBusy, err)
	}

	out, err := intf.OutEndpoint(addr.Endpoint)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to get out endpoint: %w", err)
	}

	in, err := intf.InEndpoint(addr.Endpoint)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("failed to get in endpoint: %w", err)
	}

	return &Port{
		ctx:     usbCtx,
		device:  device,
		intf:    intf,
		done:    done,
		out:     out,
		in:      in,
		timeout: cfg.Timeout,
	}, nil
}

// findDevice opens the first device matching the address
func findDevice(usbCtx *gousb.Context, addr Address) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == addr.Vendor && desc.Product == addr.Product
	})
	if len(devices) == 0 {
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
		}
		return nil, fmt.Errorf("%w: USB device %s:%s", serialkit.ErrPortNotFound, addr.Vendor, addr.Product)
	}

	for _, extra := range devices[1:] {
		extra.Close()
	}
	return devices[0], nil
}

// Read waits up to the read timeout for one bulk transfer. A timeout
// returns 0 bytes and no error.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	in, timeout := p.in, p.timeout
	p.mu.Unlock()

	if in == nil {
		return 0, serialkit.ErrDeviceGone
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	n, err := in.ReadContext(ctx, b)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, gousb.TransferTimedOut) || errors.Is(err, gousb.TransferCancelled) {
			return n, nil
		}
		if errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.TransferNoDevice) {
			return n, fmt.Errorf("%w: %v", serialkit.ErrDeviceGone, err)
		}
		return n, err
	}
	return n, nil
}

// Write sends b as bulk transfers
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()

	if out == nil {
		return 0, serialkit.ErrDeviceGone
	}

	n, err := out.Write(b)
	if err != nil && (errors.Is(err, gousb.ErrorNoDevice) || errors.Is(err, gousb.TransferNoDevice)) {
		return n, fmt.Errorf("%w: %v", serialkit.ErrDeviceGone, err)
	}
	return n, err
}

// SetReadTimeout sets the per-read wait
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = timeout
	return nil
}

// ResetInputBuffer drains transfers already queued on the in endpoint
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	in := p.in
	p.mu.Unlock()

	if in == nil {
		return serialkit.ErrDeviceGone
	}

	buf := make([]byte, in.Desc.MaxPacketSize)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		n, err := in.ReadContext(ctx, buf)
		cancel()
		if n == 0 || err != nil {
			return nil
		}
	}
}

// ResetOutputBuffer is a no-op: bulk writes are not buffered on the host
func (p *Port) ResetOutputBuffer() error {
	return nil
}

// Close releases the interface, device and libusb context
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return nil
	}

	p.done()
	err := p.device.Close()
	if cerr := p.ctx.Close(); err == nil {
		err = cerr
	}

	p.device, p.intf, p.in, p.out, p.ctx = nil, nil, nil, nil, nil
	return err
}
