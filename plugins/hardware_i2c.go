package plugins

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// I2CBus reaches the tuner over a native host I2C adapter using periph.io
type I2CBus struct {
	bus   i2c.BusCloser
	name  string
	speed physic.Frequency
}

// NewI2CBus opens the named I2C bus ("" selects the first one available)
func NewI2CBus(name string, speed uint32) (*I2CBus, error) {
	// Initialize periph.io host
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}

	freq := physic.Frequency(speed) * physic.Hertz
	if speed > 0 {
		if err := bus.SetSpeed(freq); err != nil {
			bus.Close()
			return nil, fmt.Errorf("failed to set I2C bus speed to %s: %w", freq, err)
		}
	}

	return &I2CBus{
		bus:   bus,
		name:  name,
		speed: freq,
	}, nil
}

// Write sends one addressed write transaction
func (b *I2CBus) Write(addr uint8, data []byte) (int, error) {
	if b.bus == nil {
		return 0, fmt.Errorf("I2C bus not open")
	}
	if err := b.bus.Tx(uint16(addr), data, nil); err != nil {
		return 0, fmt.Errorf("I2C write to 0x%02X failed: %w", addr, err)
	}
	return len(data), nil
}

// Read fills data from one addressed read transaction
func (b *I2CBus) Read(addr uint8, data []byte) (int, error) {
	if b.bus == nil {
		return 0, fmt.Errorf("I2C bus not open")
	}
	if err := b.bus.Tx(uint16(addr), nil, data); err != nil {
		return 0, fmt.Errorf("I2C read from 0x%02X failed: %w", addr, err)
	}
	return len(data), nil
}

// Close releases the bus
func (b *I2CBus) Close() error {
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}

// String describes the bus for logs and the status endpoint
func (b *I2CBus) String() string {
	name := b.name
	if name == "" {
		name = "default"
	}
	if b.speed == 0 {
		return fmt.Sprintf("i2c:%s", name)
	}
	return fmt.Sprintf("i2c:%s@%s", name, b.speed)
}
