package r82xx

import (
	"fmt"
	"log/slog"
)

// Defaults for an RTL2832U dongle carrying an R820T.
const (
	DefaultXtal          = 28800000
	DefaultAddress       = 0x1a
	DefaultAddressR828D  = 0x3a
	DefaultMaxMessageLen = 8
)

// Config describes one physical tuner.
type Config struct {
	Chip          Chip
	Address       uint8  // 7-bit bus address
	Xtal          uint32 // crystal frequency in Hz
	MaxMessageLen int    // largest bus transaction, address byte included
	UsePredetect  bool
	XtalCheck     bool // run the capacitor sweep during Init
	Overrides     Overrides
	Logger        *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Address == 0 {
		c.Address = DefaultAddress
		if c.Chip == ChipR828D {
			c.Address = DefaultAddressR828D
		}
	}
	if c.Xtal == 0 {
		c.Xtal = DefaultXtal
	}
	if c.MaxMessageLen == 0 {
		c.MaxMessageLen = DefaultMaxMessageLen
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the bus parameters and the register overrides.
func (c *Config) Validate() error {
	if c.MaxMessageLen < 2 {
		return fmt.Errorf("%w: max message length %d leaves no room for data", ErrInvalidConfig, c.MaxMessageLen)
	}
	if c.Address > 0x7f {
		return fmt.Errorf("%w: bus address 0x%02X is not a 7-bit address", ErrInvalidConfig, c.Address)
	}
	if _, ok := chipNames[c.Chip]; !ok {
		return fmt.Errorf("%w: unknown chip %d", ErrInvalidConfig, c.Chip)
	}
	return c.Overrides.Validate()
}

// Overrides force sub-fields of the IF filter registers regardless of the
// bandwidth table. A nil field leaves the table value in place.
type Overrides struct {
	IFCenter *int `yaml:"if_center"` // Hz, replaces the table IF
	R9       *int `yaml:"r9_76"`     // 0-3, R9[7:6] IF filter power
	R10Hi    *int `yaml:"r10_hi"`    // 0-15, R10[7:4]
	R10Lo    *int `yaml:"r10_lo"`    // 0-15, R10[3:0]
	R11Hi    *int `yaml:"r11_hi"`    // 0-7, R11[7:5]
	R11Lo    *int `yaml:"r11_lo"`    // 0-15, R11[3:0]
	R13Hi    *int `yaml:"r13_hi"`    // 0-15, LNA AGC threshold high
	R13Lo    *int `yaml:"r13_lo"`    // 0-15, LNA AGC threshold low
	R14Hi    *int `yaml:"r14_hi"`    // 0-15, mixer AGC threshold high
	R14Lo    *int `yaml:"r14_lo"`    // 0-15, mixer AGC threshold low
	R30Hi    *int `yaml:"r30_hi"`    // 0,2,4,6 shifted into R30[6:5]
	R30Lo    *int `yaml:"r30_lo"`    // 0-31, R30[4:0]

	PrintRegisterWrites bool `yaml:"print_register_writes"`
}

type overrideRange struct {
	name     string
	value    *int
	min, max int
}

func (o *Overrides) ranges() []overrideRange {
	return []overrideRange{
		{"r9_76", o.R9, 0, 3},
		{"r10_hi", o.R10Hi, 0, 15},
		{"r10_lo", o.R10Lo, 0, 15},
		{"r11_hi", o.R11Hi, 0, 7},
		{"r11_lo", o.R11Lo, 0, 15},
		{"r13_hi", o.R13Hi, 0, 15},
		{"r13_lo", o.R13Lo, 0, 15},
		{"r14_hi", o.R14Hi, 0, 15},
		{"r14_lo", o.R14Lo, 0, 15},
		{"r30_hi", o.R30Hi, 0, 6},
		{"r30_lo", o.R30Lo, 0, 31},
	}
}

// Validate rejects any override outside its register field.
func (o *Overrides) Validate() error {
	if o.IFCenter != nil && *o.IFCenter <= 0 {
		return fmt.Errorf("%w: if_center %d must be positive", ErrInvalidConfig, *o.IFCenter)
	}
	for _, r := range o.ranges() {
		if r.value == nil {
			continue
		}
		if *r.value < r.min || *r.value > r.max {
			return fmt.Errorf("%w: %s = %d, valid range %d-%d", ErrInvalidConfig, r.name, *r.value, r.min, r.max)
		}
	}
	if o.R30Hi != nil && *o.R30Hi&0x06 != *o.R30Hi {
		return fmt.Errorf("%w: r30_hi = %d, must be one of 0, 2, 4, 6", ErrInvalidConfig, *o.R30Hi)
	}
	return nil
}
