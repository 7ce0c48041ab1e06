package plugins

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Realtek RTL2832U USB IDs. The tuner hangs off the demodulator's I2C
// repeater and is reached through vendor control requests on EP0.
const (
	RTLVendorID    = 0x0bda
	RTLProductID   = 0x2838
	RTLProductIDV2 = 0x2832

	rtlCtrlOut = 0x40 // vendor, host to device
	rtlCtrlIn  = 0xc0 // vendor, device to host

	rtlBlockI2C    = 6
	rtlWriteFlag   = 0x10
	rtlDemodAddr   = 0x20
	rtlRepeaterReg = 0x01
	rtlRepeaterOn  = 0x18
	rtlRepeaterOff = 0x10

	rtlControlTimeout = 300 * time.Millisecond
)

// controlTransferer is the EP0 surface of a USB device
type controlTransferer interface {
	Control(requestType, request uint8, value, index uint16, data []byte) (int, error)
}

// RTLUSBBus reaches the tuner through an RTL2832U dongle's I2C repeater
type RTLUSBBus struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	iface  *gousb.Interface
	ctrl   controlTransferer

	Product string
	Serial  string
}

// OpenRTLUSBBus opens the index-th RTL2832U dongle and enables its I2C repeater
func OpenRTLUSBBus(index int) (*RTLUSBBus, error) {
	ctx := gousb.NewContext()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(RTLVendorID) &&
			(desc.Product == gousb.ID(RTLProductID) || desc.Product == gousb.ID(RTLProductIDV2))
	})
	if err != nil && len(devices) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate RTL2832U devices: %w", err)
	}
	if index < 0 || index >= len(devices) {
		for _, d := range devices {
			d.Close()
		}
		ctx.Close()
		return nil, fmt.Errorf("RTL2832U device %d not found (%d present)", index, len(devices))
	}

	dev := devices[index]
	for i, d := range devices {
		if i != index {
			d.Close()
		}
	}

	bus, err := wrapRTLDevice(ctx, dev)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return bus, nil
}

func wrapRTLDevice(ctx *gousb.Context, dev *gousb.Device) (*RTLUSBBus, error) {
	product, _ := dev.Product()
	serial, _ := dev.SerialNumber()

	// The DVB kernel driver usually owns the dongle
	dev.SetAutoDetach(true)
	dev.ControlTimeout = rtlControlTimeout

	config, err := dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	iface, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	bus := &RTLUSBBus{
		ctx:     ctx,
		dev:     dev,
		config:  config,
		iface:   iface,
		ctrl:    dev,
		Product: product,
		Serial:  serial,
	}

	if err := bus.SetRepeater(true); err != nil {
		iface.Close()
		config.Close()
		return nil, err
	}
	return bus, nil
}

// demodWrite writes one byte to a demodulator register
func (b *RTLUSBBus) demodWrite(page uint8, reg uint16, val uint8) error {
	n, err := b.ctrl.Control(rtlCtrlOut, 0, reg<<8|rtlDemodAddr, uint16(page)|rtlWriteFlag, []byte{val})
	if err != nil {
		return fmt.Errorf("demod write page %d register 0x%02X failed: %w", page, reg, err)
	}
	if n != 1 {
		return fmt.Errorf("demod write page %d register 0x%02X: short transfer", page, reg)
	}
	return nil
}

// demodRead reads one byte from a demodulator register
func (b *RTLUSBBus) demodRead(page uint8, reg uint16) (uint8, error) {
	data := make([]byte, 1)
	if _, err := b.ctrl.Control(rtlCtrlIn, 0, reg<<8|rtlDemodAddr, uint16(page), data); err != nil {
		return 0, fmt.Errorf("demod read page %d register 0x%02X failed: %w", page, reg, err)
	}
	return data[0], nil
}

// SetRepeater opens or closes the demodulator's I2C gate to the tuner
func (b *RTLUSBBus) SetRepeater(on bool) error {
	val := uint8(rtlRepeaterOff)
	if on {
		val = rtlRepeaterOn
	}
	if err := b.demodWrite(1, rtlRepeaterReg, val); err != nil {
		return fmt.Errorf("failed to switch I2C repeater: %w", err)
	}

	// Demod writes only settle after a dummy read
	if _, err := b.demodRead(0x0a, 0x01); err != nil {
		return fmt.Errorf("failed to switch I2C repeater: %w", err)
	}
	return nil
}

// Write sends one addressed I2C write through the repeater
func (b *RTLUSBBus) Write(addr uint8, data []byte) (int, error) {
	n, err := b.ctrl.Control(rtlCtrlOut, 0, uint16(addr)<<1, rtlBlockI2C<<8|rtlWriteFlag, data)
	if err != nil {
		return n, fmt.Errorf("I2C write to 0x%02X failed: %w", addr, err)
	}
	return n, nil
}

// Read fills data from one addressed I2C read through the repeater
func (b *RTLUSBBus) Read(addr uint8, data []byte) (int, error) {
	n, err := b.ctrl.Control(rtlCtrlIn, 0, uint16(addr)<<1, rtlBlockI2C<<8, data)
	if err != nil {
		return n, fmt.Errorf("I2C read from 0x%02X failed: %w", addr, err)
	}
	return n, nil
}

// Close disables the repeater and releases the dongle
func (b *RTLUSBBus) Close() error {
	var errs []error

	if b.ctrl != nil {
		if err := b.SetRepeater(false); err != nil {
			errs = append(errs, err)
		}
		b.ctrl = nil
	}
	if b.iface != nil {
		b.iface.Close()
		b.iface = nil
	}
	if b.config != nil {
		if err := b.config.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close configuration: %w", err))
		}
		b.config = nil
	}
	if b.dev != nil {
		if err := b.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close device: %w", err))
		}
		b.dev = nil
	}
	if b.ctx != nil {
		if err := b.ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close USB context: %w", err))
		}
		b.ctx = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing RTL2832U: %v", errs)
	}
	return nil
}

// String describes the bus for logs and the status endpoint
func (b *RTLUSBBus) String() string {
	if b.Serial == "" {
		return fmt.Sprintf("rtlsdr:%s", b.Product)
	}
	return fmt.Sprintf("rtlsdr:%s (%s)", b.Product, b.Serial)
}
